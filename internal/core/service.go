package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"diagramcore/internal/graph"
	"diagramcore/internal/persistence"
	"diagramcore/internal/undo"
	"diagramcore/internal/view"
	"diagramcore/pkg/model"
)

// ErrNoStore is returned by document operations when the service was built
// without a persistence backend.
var ErrNoStore = errors.New("no document store configured")

// Operation names used in logs, metrics, traces, and audit entries.
const (
	opInsertVertex    = "insert_vertex"
	opInsertEdge      = "insert_edge"
	opRemoveCell      = "remove_cell"
	opMoveCell        = "move_cell"
	opConnectEdge     = "connect_edge"
	opSetGeometry     = "set_geometry"
	opSetStyle        = "set_style"
	opSetValue        = "set_value"
	opSetVisibility   = "set_visibility"
	opSetCollapsed    = "set_collapsed"
	opReplaceDocument = "replace_document"
	opBatch           = "batch"
	opUndo            = "undo"
	opRedo            = "redo"
	opValidateView    = "validate_view"
	opSaveDocument    = "save_document"
	opLoadDocument    = "load_document"
)

type operationInfo struct {
	entity  AuditEntity
	action  AuditAction
	mutates bool
}

// operations maps every service operation to its audit metadata. Operations
// absent from the table produce no audit entries. The mutates flag drives
// autosave.
var operations = map[string]operationInfo{
	opInsertVertex:    {entity: EntityCell, action: ActionCreate, mutates: true},
	opInsertEdge:      {entity: EntityCell, action: ActionCreate, mutates: true},
	opRemoveCell:      {entity: EntityCell, action: ActionDelete, mutates: true},
	opMoveCell:        {entity: EntityCell, action: ActionMove, mutates: true},
	opConnectEdge:     {entity: EntityCell, action: ActionConnect, mutates: true},
	opSetGeometry:     {entity: EntityCell, action: ActionUpdate, mutates: true},
	opSetStyle:        {entity: EntityCell, action: ActionUpdate, mutates: true},
	opSetValue:        {entity: EntityCell, action: ActionUpdate, mutates: true},
	opSetVisibility:   {entity: EntityCell, action: ActionUpdate, mutates: true},
	opSetCollapsed:    {entity: EntityCell, action: ActionUpdate, mutates: true},
	opReplaceDocument: {entity: EntityDocument, action: ActionReplace, mutates: true},
	opBatch:           {entity: EntityDocument, action: ActionUpdate, mutates: true},
	opUndo:            {entity: EntityHistory, action: ActionUndo, mutates: true},
	opRedo:            {entity: EntityHistory, action: ActionRedo, mutates: true},
	opValidateView:    {entity: EntityView, action: ActionRefresh},
	opSaveDocument:    {entity: EntityDocument, action: ActionSave},
	opLoadDocument:    {entity: EntityDocument, action: ActionLoad},
}

// Service exposes the diagram model, view cache, undo history, and document
// persistence behind one synchronized facade. Every operation is logged,
// measured, traced, and audited through the configured sinks.
type Service struct {
	mu      sync.Mutex
	model   *graph.Model
	view    *view.Cache
	history *undo.Manager

	clock    Clock
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	store    persistence.DocumentStore
	docID    string
	autosave bool
}

// NewService constructs a service with a fresh document and the supplied
// options.
func NewService(opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	m := graph.NewModel()
	s := &Service{
		model:    m,
		view:     view.NewCache(m, options.viewOptions...),
		history:  undo.NewManager(m, options.historyLimit),
		clock:    options.clock,
		logger:   options.logger,
		audit:    options.audit,
		metrics:  options.metrics,
		tracer:   options.tracer,
		store:    options.store,
		docID:    options.documentID,
		autosave: options.autosave,
	}
	s.history.Attach()
	return s
}

// run wraps an operation with timing, tracing, logging, metrics, audit, and
// autosave. fn returns the cell the operation acted on, or None when the
// operation has no single subject.
func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context) (model.CellID, error)) (model.CellID, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	s.logger.Debug("operation started", "operation", operation)

	subject, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)

	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err)
		s.recordAudit(ctx, operation, subject, AuditStatusError, duration)
		return model.None, err
	}

	fields := []any{"operation", operation}
	if subject != model.None {
		fields = append(fields, "cell", string(subject))
	}
	s.logger.Info("operation completed", fields...)
	s.recordAudit(ctx, operation, subject, AuditStatusSuccess, duration)
	s.persistAfter(ctx, operation)
	return subject, nil
}

func (s *Service) recordAudit(ctx context.Context, operation string, subject model.CellID, status AuditStatus, duration time.Duration) {
	info, ok := operations[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    info.entity,
		Action:    info.action,
		Cell:      subject,
		Status:    status,
		Duration:  duration,
		Timestamp: s.clock.Now().UTC(),
	})
}

// persistAfter saves the document after successful mutating operations when
// autosave is enabled. Failures are logged, not returned, so an unreachable
// store never rolls back a committed edit.
func (s *Service) persistAfter(ctx context.Context, operation string) {
	if !s.autosave || s.store == nil {
		return
	}
	info, ok := operations[operation]
	if !ok || !info.mutates {
		return
	}
	if err := s.store.Save(ctx, s.docID, s.Snapshot()); err != nil {
		s.logger.Warn("autosave failed", "document", s.docID, "error", err)
	}
}

// InsertVertex creates a vertex beneath parent and returns its id. A None
// parent targets the default layer.
func (s *Service) InsertVertex(ctx context.Context, parent model.CellID, value any, geometry *model.Geometry, style model.Style) (model.CellID, error) {
	return s.run(ctx, opInsertVertex, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.model.InsertVertex(parent, value, geometry, style)
	})
}

// InsertEdge creates an edge beneath parent wired to the given terminals and
// returns its id. Either terminal may be None.
func (s *Service) InsertEdge(ctx context.Context, parent model.CellID, value any, style model.Style, source, target model.CellID) (model.CellID, error) {
	return s.run(ctx, opInsertEdge, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.model.InsertEdge(parent, value, style, source, target)
	})
}

// RemoveCell deletes a cell and its subtree.
func (s *Service) RemoveCell(ctx context.Context, id model.CellID) error {
	_, err := s.run(ctx, opRemoveCell, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.Remove(id); err != nil {
			return model.None, err
		}
		return id, nil
	})
	return err
}

// MoveCell reparents a cell to the given parent and sibling index.
func (s *Service) MoveCell(ctx context.Context, id, parent model.CellID, index int) error {
	_, err := s.run(ctx, opMoveCell, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetParent(id, parent, index); err != nil {
			return model.None, err
		}
		return id, nil
	})
	return err
}

// ConnectEdge rewires one end of an edge to a new terminal, or detaches it
// when terminal is None.
func (s *Service) ConnectEdge(ctx context.Context, edge model.CellID, source bool, terminal model.CellID) error {
	_, err := s.run(ctx, opConnectEdge, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetTerminal(edge, source, terminal); err != nil {
			return model.None, err
		}
		return edge, nil
	})
	return err
}

// SetGeometry replaces a cell's geometry.
func (s *Service) SetGeometry(ctx context.Context, id model.CellID, geometry *model.Geometry) error {
	_, err := s.run(ctx, opSetGeometry, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetGeometry(id, geometry); err != nil {
			return model.None, err
		}
		return id, nil
	})
	return err
}

// SetStyle replaces a cell's style.
func (s *Service) SetStyle(ctx context.Context, id model.CellID, style model.Style) error {
	_, err := s.run(ctx, opSetStyle, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetStyle(id, style); err != nil {
			return model.None, err
		}
		return id, nil
	})
	return err
}

// SetValue replaces a cell's user value.
func (s *Service) SetValue(ctx context.Context, id model.CellID, value any) error {
	_, err := s.run(ctx, opSetValue, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetValue(id, value); err != nil {
			return model.None, err
		}
		return id, nil
	})
	return err
}

// SetVisibility shows or hides a cell.
func (s *Service) SetVisibility(ctx context.Context, id model.CellID, visible bool) error {
	_, err := s.run(ctx, opSetVisibility, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetVisible(id, visible); err != nil {
			return model.None, err
		}
		return id, nil
	})
	return err
}

// SetCollapsed folds or unfolds a group cell.
func (s *Service) SetCollapsed(ctx context.Context, id model.CellID, collapsed bool) error {
	_, err := s.run(ctx, opSetCollapsed, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetCollapsed(id, collapsed); err != nil {
			return model.None, err
		}
		return id, nil
	})
	return err
}

// ReplaceDocument swaps the whole cell tree for the supplied snapshot. The
// swap is recorded in history, so it can be undone like any other edit.
func (s *Service) ReplaceDocument(ctx context.Context, snapshot model.Snapshot) error {
	_, err := s.run(ctx, opReplaceDocument, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetRoot(snapshot); err != nil {
			return model.None, err
		}
		return model.None, nil
	})
	return err
}

// Batch runs fn against the model inside a single transaction. All edits fn
// makes coalesce into one history entry and one change notification.
func (s *Service) Batch(ctx context.Context, fn func(m *graph.Model) error) error {
	_, err := s.run(ctx, opBatch, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return model.None, s.model.Batch(func() error {
			return fn(s.model)
		})
	})
	return err
}

// Undo reverts the most recent history entry.
func (s *Service) Undo(ctx context.Context) error {
	_, err := s.run(ctx, opUndo, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return model.None, s.history.Undo()
	})
	return err
}

// Redo reapplies the most recently undone history entry.
func (s *Service) Redo(ctx context.Context) error {
	_, err := s.run(ctx, opRedo, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return model.None, s.history.Redo()
	})
	return err
}

// Validate brings the view cache up to date with the model.
func (s *Service) Validate(ctx context.Context) error {
	_, err := s.run(ctx, opValidateView, func(context.Context) (model.CellID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.view.Validate()
		return model.None, nil
	})
	return err
}

// SaveDocument persists the current document to the configured store.
func (s *Service) SaveDocument(ctx context.Context) error {
	_, err := s.run(ctx, opSaveDocument, func(ctx context.Context) (model.CellID, error) {
		if s.store == nil {
			return model.None, ErrNoStore
		}
		s.mu.Lock()
		snapshot := s.model.Snapshot()
		s.mu.Unlock()
		return model.None, s.store.Save(ctx, s.docID, snapshot)
	})
	return err
}

// LoadDocument replaces the current document with the stored one and clears
// the undo history, so a load starts a fresh editing session.
func (s *Service) LoadDocument(ctx context.Context) error {
	_, err := s.run(ctx, opLoadDocument, func(ctx context.Context) (model.CellID, error) {
		if s.store == nil {
			return model.None, ErrNoStore
		}
		snapshot, err := s.store.Load(ctx, s.docID)
		if err != nil {
			return model.None, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.model.SetRoot(snapshot); err != nil {
			return model.None, err
		}
		s.history.Clear()
		return model.None, nil
	})
	return err
}

// Cell returns a copy of the cell record, or false when the id is unknown.
func (s *Service) Cell(id model.CellID) (*model.Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Cell(id)
}

// Children returns the ordered child ids of a cell.
func (s *Service) Children(id model.CellID) []model.CellID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Children(id)
}

// Root returns the document root id.
func (s *Service) Root() model.CellID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Root()
}

// DefaultParent returns the layer new cells land on when no parent is given.
func (s *Service) DefaultParent() model.CellID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.DefaultParent()
}

// CellCount returns the number of cells in the document.
func (s *Service) CellCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.CellCount()
}

// Snapshot returns a deep copy of the whole document.
func (s *Service) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Snapshot()
}

// CellState returns the cached render state for a cell, or nil when none is
// cached. Call Validate first for up-to-date states.
func (s *Service) CellState(id model.CellID) *view.CellState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.GetState(id)
}

// CanUndo reports whether an Undo would succeed.
func (s *Service) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether a Redo would succeed.
func (s *Service) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// HistoryLength returns the number of retained history entries.
func (s *Service) HistoryLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// DocumentID returns the id the service saves the document under.
func (s *Service) DocumentID() string {
	return s.docID
}
