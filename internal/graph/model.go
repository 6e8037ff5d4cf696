// Package graph implements the transactional document model: an arena of
// cells forming a rooted tree, mutated through undoable change records that
// are batched into transactions and announced as a single change event per
// outermost commit.
package graph

import (
	"strconv"

	"diagramcore/pkg/event"
	"diagramcore/pkg/model"
)

// EventChange is fired once per outermost transaction that recorded at
// least one change. Its PropertyEdit entry carries the ordered change list.
const EventChange event.Name = "change"

// PropertyEdit is the event property holding the transaction's *model.Edit.
const PropertyEdit = "edit"

// Ids assigned to the structural root cell and the default layer created by
// NewModel. Generated cell ids continue the decimal sequence from "2".
const (
	RootID  model.CellID = "0"
	LayerID model.CellID = "1"
)

// Model owns the cell arena and is the only way to mutate it. All
// relationships are stored as ids, so the structure is acyclic by
// construction at the storage level and cycle checks reduce to ancestor
// walks. Reads hand out copies; writes go through the mutation methods,
// which record one change per call into the open transaction.
//
// Model is not safe for concurrent use. Callers that share a model across
// goroutines hold one exclusive lock around every call (see core.Service).
type Model struct {
	event.Source

	cells map[model.CellID]*model.Cell
	root  model.CellID

	// edges indexes, per cell id, the edges referencing it as a terminal,
	// in attachment order.
	edges map[model.CellID][]model.CellID

	depth   int
	changes []model.Change
	seq     uint64
}

// NewModel returns a model holding the structural root and one default
// layer, the empty document every editing session starts from.
func NewModel() *Model {
	m := &Model{
		cells: make(map[model.CellID]*model.Cell),
		edges: make(map[model.CellID][]model.CellID),
		root:  RootID,
		seq:   2,
	}
	m.cells[RootID] = &model.Cell{ID: RootID, Visible: true, Children: []model.CellID{LayerID}}
	m.cells[LayerID] = &model.Cell{ID: LayerID, Parent: RootID, Visible: true, Connectable: true}
	return m
}

// BeginUpdate opens or deepens the current transaction.
func (m *Model) BeginUpdate() {
	m.depth++
}

// EndUpdate closes one nesting level. When the outermost level closes with
// at least one recorded change, the change list is sealed into an Edit and
// a single EventChange fires before control returns. Calling EndUpdate
// without a matching BeginUpdate is a programming error and panics.
func (m *Model) EndUpdate() {
	if m.depth == 0 {
		panic("graph: EndUpdate without matching BeginUpdate")
	}
	m.depth--
	if m.depth > 0 || len(m.changes) == 0 {
		return
	}
	edit := &model.Edit{Changes: m.changes}
	m.changes = nil
	m.Fire(event.Event{
		Name:       EventChange,
		Source:     m,
		Properties: map[string]any{PropertyEdit: edit},
	})
}

// Batch runs fn inside one transaction level. EndUpdate runs even when fn
// panics, so a transaction can never be left open.
func (m *Model) Batch(fn func() error) error {
	m.BeginUpdate()
	defer m.EndUpdate()
	return fn()
}

// Updating reports whether a transaction is currently open.
func (m *Model) Updating() bool {
	return m.depth > 0
}

// Root returns the id of the structural root cell.
func (m *Model) Root() model.CellID {
	return m.root
}

// DefaultParent returns the first layer under the root, the parent used for
// inserts that do not name one. Documents loaded without layers fall back
// to the root itself.
func (m *Model) DefaultParent() model.CellID {
	if root := m.cells[m.root]; root != nil && len(root.Children) > 0 {
		return root.Children[0]
	}
	return m.root
}

// Contains reports whether id is present in the arena.
func (m *Model) Contains(id model.CellID) bool {
	_, ok := m.cells[id]
	return ok
}

// Cell returns a copy of the record stored under id. Mutating the copy has
// no effect on the model.
func (m *Model) Cell(id model.CellID) (*model.Cell, bool) {
	cell, ok := m.cells[id]
	if !ok {
		return nil, false
	}
	return cell.Clone(), true
}

// Parent returns the parent id of a cell, or None for the root and for
// unknown ids.
func (m *Model) Parent(id model.CellID) model.CellID {
	if cell, ok := m.cells[id]; ok {
		return cell.Parent
	}
	return model.None
}

// Children returns the ordered child ids of a cell. The order is paint
// order.
func (m *Model) Children(id model.CellID) []model.CellID {
	cell, ok := m.cells[id]
	if !ok || len(cell.Children) == 0 {
		return nil
	}
	return append([]model.CellID(nil), cell.Children...)
}

// Edges returns the ids of edges referencing id as either terminal, in
// attachment order.
func (m *Model) Edges(id model.CellID) []model.CellID {
	incident := m.edges[id]
	if len(incident) == 0 {
		return nil
	}
	return append([]model.CellID(nil), incident...)
}

// IsAncestor reports whether ancestor lies on cell's parent chain. A cell
// is not its own ancestor.
func (m *Model) IsAncestor(ancestor, cell model.CellID) bool {
	if ancestor == model.None {
		return false
	}
	current, ok := m.cells[cell]
	for ok && current.Parent != model.None {
		if current.Parent == ancestor {
			return true
		}
		current, ok = m.cells[current.Parent]
	}
	return false
}

// CellCount reports the number of cells in the arena, structural cells
// included.
func (m *Model) CellCount() int {
	return len(m.cells)
}

// Snapshot returns a deep copy of the arena. Snapshots are self-contained:
// they can be persisted, diffed, or fed back through SetRoot.
func (m *Model) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		Root:     m.root,
		Cells:    make(map[model.CellID]*model.Cell, len(m.cells)),
		Sequence: m.seq,
	}
	for id, cell := range m.cells {
		snap.Cells[id] = cell.Clone()
	}
	return snap
}

// nextID returns the next unused decimal id.
func (m *Model) nextID() model.CellID {
	for {
		id := model.CellID(strconv.FormatUint(m.seq, 10))
		m.seq++
		if _, ok := m.cells[id]; !ok {
			return id
		}
	}
}

// execute applies ch to the arena and appends it to the open transaction,
// wrapping lone mutation calls in an implicit one.
func (m *Model) execute(ch model.Change) {
	m.BeginUpdate()
	m.applyChange(ch, true)
	m.changes = append(m.changes, ch)
	m.EndUpdate()
}
