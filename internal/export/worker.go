// Package export renders committed document snapshots into artifacts and
// stores them in the archive. Exports run asynchronously on a single worker
// goroutine fed by a bounded queue; every request leaves an audit trail.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"diagramcore/internal/archive"
	"diagramcore/pkg/model"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format identifies an artifact rendering.
type Format string

const (
	// FormatJSON renders the full document snapshot.
	FormatJSON Format = "json"
	// FormatCSV renders the cell inventory table.
	FormatCSV Format = "csv"
)

const queueCapacity = 32

// Artifact captures one stored export rendering.
type Artifact struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Request enqueues an export of the source's current committed state.
type Request struct {
	Formats     []Format
	RequestedBy string
	Reason      string
}

// SnapshotSource provides committed document state for export. The service
// satisfies this; the worker never touches the live cell arena.
type SnapshotSource interface {
	Snapshot() model.Snapshot
	DocumentID() string
}

// Scheduler queues export requests and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, req Request) (Record, error)
	Get(id string) (Record, bool)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Document   string         `json:"document"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Worker executes document exports asynchronously.
type Worker struct {
	source SnapshotSource
	store  archive.Store
	audit  AuditLogger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	jobCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Scheduler = (*Worker)(nil)

type exportTask struct {
	id string
}

type renderedArtifact struct {
	artifact Artifact
	payload  []byte
}

// NewWorker constructs an export worker. A nil store keeps rendered artifact
// metadata on the record without persisting payloads.
func NewWorker(source SnapshotSource, store archive.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		audit:  audit,
		queue:  make(chan exportTask, queueCapacity),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		jobCtx: context.WithoutCancel(ctx),
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt, drains queued requests, and waits for
// completion or context expiry.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// drain finishes tasks that were queued before Stop.
func (w *Worker) drain() {
	for {
		select {
		case task := <-w.queue:
			w.process(task)
		default:
			return
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, req Request) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("export source not configured")
	}

	formats := req.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if format != FormatJSON && format != FormatCSV {
			return Record{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		DocumentID:  w.source.DocumentID(),
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, id, StatusQueued, req.Reason, nil)

	select {
	case w.queue <- exportTask{id: id}:
	default:
		w.fail(id, "export queue full")
		return Record{}, fmt.Errorf("export queue full")
	}

	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.RUnlock()
		return Record{}, false
	}
	snapshot := record.copy()
	w.mu.RUnlock()
	return snapshot, true
}

// Records returns snapshots of all export records ordered by creation time.
func (w *Worker) Records() []Record {
	w.mu.RLock()
	out := make([]Record, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (w *Worker) process(task exportTask) {
	record, ok := w.Get(task.id)
	if !ok {
		return
	}

	w.updateStatus(task.id, StatusRunning, "")

	snap := w.source.Snapshot()
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		rendered, err := materialize(format, snap)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		rendered.artifact.Key = fmt.Sprintf("exports/%s/%s.%s", record.DocumentID, record.ID, format)
		if w.store != nil {
			info, err := w.store.Put(w.jobCtx, rendered.artifact.Key, bytes.NewReader(rendered.payload), archive.PutOptions{
				ContentType: rendered.artifact.ContentType,
				Metadata: map[string]string{
					"document": record.DocumentID,
					"export":   record.ID,
					"cells":    strconv.Itoa(snap.Len()),
				},
			})
			if err != nil {
				w.fail(task.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			rendered.artifact.ETag = info.ETag
			rendered.artifact.URL = info.URL
		}
		artifacts = append(artifacts, rendered.artifact)
	}

	w.complete(task.id, artifacts)
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.recordAudit(w.jobCtx, id, status, "", nil)
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.jobCtx, id, StatusSucceeded, "", nil)
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.jobCtx, id, StatusFailed, "", map[string]any{"error": reason})
}

func (w *Worker) recordAudit(ctx context.Context, id string, status Status, reason string, metadata map[string]any) {
	if w.audit == nil {
		return
	}
	actor, document := w.recordMeta(id)
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     "document_export",
		Actor:      actor,
		Document:   document,
		Status:     status,
		Reason:     reason,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	})
}

func (w *Worker) recordMeta(id string) (actor, document string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return record.RequestedBy, record.DocumentID
	}
	return "", ""
}

func materialize(format Format, snap model.Snapshot) (renderedArtifact, error) {
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return renderedArtifact{}, fmt.Errorf("marshal snapshot: %w", err)
		}
		return newRendered(FormatJSON, "application/json", payload), nil
	case FormatCSV:
		payload, err := cellInventoryCSV(snap)
		if err != nil {
			return renderedArtifact{}, err
		}
		return newRendered(FormatCSV, "text/csv", payload), nil
	default:
		return renderedArtifact{}, fmt.Errorf("unsupported export format %s", format)
	}
}

func newRendered(format Format, contentType string, payload []byte) renderedArtifact {
	return renderedArtifact{
		artifact: Artifact{
			ID:          uuid.NewString(),
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			CreatedAt:   time.Now().UTC(),
		},
		payload: payload,
	}
}

// cellInventoryCSV renders one row per cell in document order.
func cellInventoryCSV(snap model.Snapshot) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"id", "kind", "parent", "label", "x", "y", "width", "height", "style", "source", "target"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, id := range documentOrder(snap) {
		cell := snap.Cell(id)
		row := []string{
			string(cell.ID),
			cellKind(snap, cell),
			string(cell.Parent),
			labelString(cell.Value),
		}
		row = append(row, geometryColumns(cell.Geometry)...)
		row = append(row, styleString(cell.Style), string(cell.Source), string(cell.Target))
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// documentOrder walks the tree preorder from the root, which keeps rows in
// the order an editor lists them.
func documentOrder(snap model.Snapshot) []model.CellID {
	order := make([]model.CellID, 0, snap.Len())
	var walk func(id model.CellID)
	walk = func(id model.CellID) {
		cell := snap.Cell(id)
		if cell == nil {
			return
		}
		order = append(order, id)
		for _, child := range cell.Children {
			walk(child)
		}
	}
	walk(snap.Root)
	return order
}

func cellKind(snap model.Snapshot, cell *model.Cell) string {
	switch {
	case cell.Edge:
		return "edge"
	case cell.Vertex:
		return "vertex"
	case cell.ID == snap.Root:
		return "root"
	case cell.Parent == snap.Root:
		return "layer"
	default:
		return "group"
	}
}

func labelString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func geometryColumns(g *model.Geometry) []string {
	if g == nil {
		return []string{"", "", "", ""}
	}
	return []string{
		formatCoord(g.X),
		formatCoord(g.Y),
		formatCoord(g.Width),
		formatCoord(g.Height),
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// styleString renders a style map as sorted key=value pairs joined by
// semicolons, the conventional diagram style string shape.
func styleString(style model.Style) string {
	if len(style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + style[k]
	}
	return strings.Join(pairs, ";")
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// MemoryAuditLog captures audit entries in memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(ctx context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
