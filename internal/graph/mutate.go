package graph

import (
	"fmt"

	"diagramcore/pkg/model"
)

// Insert adds a freshly constructed cell beneath parent at index; index -1
// appends. Parent None selects the default layer. The cell may carry value,
// geometry, style, flags, and, for edges, terminal references, but must not
// carry children; an empty id is assigned from the model's sequence. The id
// under which the cell was stored is returned.
func (m *Model) Insert(parent model.CellID, index int, cell *model.Cell) (model.CellID, error) {
	if cell == nil {
		return model.None, fmt.Errorf("insert: nil cell")
	}
	if parent == model.None {
		parent = m.DefaultParent()
	}
	if cell.ID != model.None && cell.ID == parent {
		return model.None, model.CyclicStructureError{Cell: cell.ID, Parent: parent}
	}
	target, ok := m.cells[parent]
	if !ok {
		return model.None, model.UnknownCellError{ID: parent}
	}
	if cell.ID != model.None {
		if _, exists := m.cells[cell.ID]; exists {
			return model.None, model.DuplicateCellError{ID: cell.ID}
		}
	}
	if len(cell.Children) > 0 {
		return model.None, fmt.Errorf("insert: cell %q must not carry children", cell.ID)
	}
	if cell.Source != model.None || cell.Target != model.None {
		if !cell.Edge {
			return model.None, model.InvalidTerminalError{Edge: cell.ID, Terminal: cell.Source, Reason: "cell is not an edge"}
		}
		for _, terminal := range []model.CellID{cell.Source, cell.Target} {
			if terminal == model.None {
				continue
			}
			if _, exists := m.cells[terminal]; !exists {
				return model.None, model.UnknownCellError{ID: terminal}
			}
		}
	}

	record := cell.Clone()
	if record.ID == model.None {
		record.ID = m.nextID()
	}
	record.Parent = parent
	index = clampIndex(index, len(target.Children))
	m.execute(&model.ChildChange{
		Child:         record,
		Parent:        parent,
		Previous:      model.None,
		Index:         index,
		PreviousIndex: -1,
	})
	return record.ID, nil
}

// InsertVertex creates a visible, connectable vertex beneath parent and
// returns its id.
func (m *Model) InsertVertex(parent model.CellID, value any, geometry *model.Geometry, style model.Style) (model.CellID, error) {
	return m.Insert(parent, -1, &model.Cell{
		Value:       value,
		Geometry:    geometry.Clone(),
		Style:       style.Clone(),
		Vertex:      true,
		Visible:     true,
		Connectable: true,
	})
}

// InsertEdge creates a visible edge beneath parent wired to the given
// terminals. Either terminal may be None for a dangling edge. Edges get a
// relative geometry so label positions stay proportional to the route.
func (m *Model) InsertEdge(parent model.CellID, value any, style model.Style, source, target model.CellID) (model.CellID, error) {
	return m.Insert(parent, -1, &model.Cell{
		Value:       value,
		Geometry:    &model.Geometry{Relative: true},
		Style:       style.Clone(),
		Edge:        true,
		Visible:     true,
		Connectable: true,
		Source:      source,
		Target:      target,
	})
}

// Remove deletes a cell and its whole subtree in one transaction. Edges
// outside the subtree that reference a removed cell have that terminal
// detached before any structural change; descendants detach before their
// parents, highest sibling index first, so the recorded sequence reinserts
// parents before children when replayed in reverse.
func (m *Model) Remove(id model.CellID) error {
	cell, ok := m.cells[id]
	if !ok {
		return model.UnknownCellError{ID: id}
	}
	if id == m.root {
		return fmt.Errorf("remove: cell %q is the document root", id)
	}

	subtree := make(map[model.CellID]bool)
	m.collectSubtree(id, subtree)

	m.BeginUpdate()
	m.detachIncidentTerminals(id, subtree)
	m.removeCascade(cell)
	m.EndUpdate()
	return nil
}

func (m *Model) collectSubtree(id model.CellID, into map[model.CellID]bool) {
	into[id] = true
	for _, child := range m.cells[id].Children {
		m.collectSubtree(child, into)
	}
}

// detachIncidentTerminals records a TerminalChange clearing every terminal
// of an outside edge that points into the subtree, walking the subtree in
// document order. Edges inside the subtree keep their terminals; their own
// removal records carry the wiring.
func (m *Model) detachIncidentTerminals(id model.CellID, subtree map[model.CellID]bool) {
	incident := append([]model.CellID(nil), m.edges[id]...)
	for _, edgeID := range incident {
		if subtree[edgeID] {
			continue
		}
		edge, ok := m.cells[edgeID]
		if !ok {
			continue
		}
		for _, source := range []bool{true, false} {
			if edge.Terminal(source) == id {
				m.execute(&model.TerminalChange{
					Edge:     edgeID,
					Source:   source,
					Terminal: model.None,
					Previous: id,
				})
			}
		}
	}
	for _, child := range m.cells[id].Children {
		m.detachIncidentTerminals(child, subtree)
	}
}

// removeCascade records the structural detachment of cell's subtree. The
// cell's own record is captured after its children have detached, so the
// snapshot carries an empty child list and never references cells that are
// not restored alongside it.
func (m *Model) removeCascade(cell *model.Cell) {
	children := append([]model.CellID(nil), cell.Children...)
	for i := len(children) - 1; i >= 0; i-- {
		m.removeCascade(m.cells[children[i]])
	}
	prevIndex := -1
	if parent, ok := m.cells[cell.Parent]; ok {
		prevIndex = parent.ChildIndex(cell.ID)
	}
	m.execute(&model.ChildChange{
		Child:         cell.Clone(),
		Parent:        model.None,
		Previous:      cell.Parent,
		Index:         -1,
		PreviousIndex: prevIndex,
	})
}

// SetParent moves cell beneath parent at index; index -1 appends. Within
// the same parent the index names the position after the cell is spliced
// out of its old slot.
func (m *Model) SetParent(id, parent model.CellID, index int) error {
	cell, ok := m.cells[id]
	if !ok {
		return model.UnknownCellError{ID: id}
	}
	if id == m.root {
		return fmt.Errorf("set parent: cell %q is the document root", id)
	}
	target, ok := m.cells[parent]
	if !ok {
		return model.UnknownCellError{ID: parent}
	}
	if parent == id || m.IsAncestor(id, parent) {
		return model.CyclicStructureError{Cell: id, Parent: parent}
	}

	prevIndex := -1
	if previous, ok := m.cells[cell.Parent]; ok {
		prevIndex = previous.ChildIndex(id)
	}
	count := len(target.Children)
	if parent == cell.Parent && count > 0 {
		count--
	}
	m.execute(&model.ChildChange{
		Child:         cell.Clone(),
		Parent:        parent,
		Previous:      cell.Parent,
		Index:         clampIndex(index, count),
		PreviousIndex: prevIndex,
	})
	return nil
}

// SetTerminal rebinds one end of an edge; source selects the end and None
// detaches it.
func (m *Model) SetTerminal(edgeID model.CellID, source bool, terminal model.CellID) error {
	edge, ok := m.cells[edgeID]
	if !ok {
		return model.UnknownCellError{ID: edgeID}
	}
	if !edge.Edge {
		return model.InvalidTerminalError{Edge: edgeID, Terminal: terminal, Reason: "cell is not an edge"}
	}
	if terminal != model.None {
		if _, ok := m.cells[terminal]; !ok {
			return model.UnknownCellError{ID: terminal}
		}
	}
	m.execute(&model.TerminalChange{
		Edge:     edgeID,
		Source:   source,
		Terminal: terminal,
		Previous: edge.Terminal(source),
	})
	return nil
}

// SetGeometry replaces a cell's geometry wholesale. The value is copied on
// the way in, so the caller keeps ownership of its argument.
func (m *Model) SetGeometry(id model.CellID, geometry *model.Geometry) error {
	cell, ok := m.cells[id]
	if !ok {
		return model.UnknownCellError{ID: id}
	}
	m.execute(&model.GeometryChange{
		Cell:     id,
		Geometry: geometry.Clone(),
		Previous: cell.Geometry,
	})
	return nil
}

// SetStyle replaces a cell's style wholesale. The map is copied on the way
// in.
func (m *Model) SetStyle(id model.CellID, style model.Style) error {
	cell, ok := m.cells[id]
	if !ok {
		return model.UnknownCellError{ID: id}
	}
	m.execute(&model.StyleChange{
		Cell:     id,
		Style:    style.Clone(),
		Previous: cell.Style,
	})
	return nil
}

// SetValue replaces a cell's user value. Values are carried by reference
// and treated as immutable.
func (m *Model) SetValue(id model.CellID, value any) error {
	cell, ok := m.cells[id]
	if !ok {
		return model.UnknownCellError{ID: id}
	}
	m.execute(&model.ValueChange{
		Cell:     id,
		Value:    value,
		Previous: cell.Value,
	})
	return nil
}

// SetVisible toggles whether a cell is rendered.
func (m *Model) SetVisible(id model.CellID, visible bool) error {
	cell, ok := m.cells[id]
	if !ok {
		return model.UnknownCellError{ID: id}
	}
	m.execute(&model.VisibilityChange{
		Cell:     id,
		Visible:  visible,
		Previous: cell.Visible,
	})
	return nil
}

// SetCollapsed toggles whether a group hides its children.
func (m *Model) SetCollapsed(id model.CellID, collapsed bool) error {
	cell, ok := m.cells[id]
	if !ok {
		return model.UnknownCellError{ID: id}
	}
	m.execute(&model.CollapseChange{
		Cell:      id,
		Collapsed: collapsed,
		Previous:  cell.Collapsed,
	})
	return nil
}

// SetRoot replaces the whole arena with the cells of next, recording a
// RootChange whose previous snapshot restores the current document on undo.
// The snapshot must describe a consistent rooted tree.
func (m *Model) SetRoot(next model.Snapshot) error {
	if err := validateSnapshot(next); err != nil {
		return err
	}
	m.execute(&model.RootChange{
		Previous: m.Snapshot(),
		Next:     next.Clone(),
	})
	return nil
}

// validateSnapshot checks that snap describes one rooted tree: every cell
// reachable from the root exactly once, parent references matching the
// walk, and terminals resolving to cells in the snapshot.
func validateSnapshot(snap model.Snapshot) error {
	if snap.Root == model.None {
		return fmt.Errorf("snapshot: missing root id")
	}
	root := snap.Cell(snap.Root)
	if root == nil {
		return model.UnknownCellError{ID: snap.Root}
	}
	if root.Parent != model.None {
		return fmt.Errorf("snapshot: root %q has parent %q", snap.Root, root.Parent)
	}

	visited := make(map[model.CellID]bool, len(snap.Cells))
	var walk func(id model.CellID) error
	walk = func(id model.CellID) error {
		if visited[id] {
			return model.CyclicStructureError{Cell: id, Parent: snap.Cell(id).Parent}
		}
		visited[id] = true
		cell := snap.Cell(id)
		for _, child := range cell.Children {
			childCell := snap.Cell(child)
			if childCell == nil {
				return model.UnknownCellError{ID: child}
			}
			if childCell.Parent != id {
				return fmt.Errorf("snapshot: cell %q lists child %q whose parent is %q", id, child, childCell.Parent)
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(snap.Root); err != nil {
		return err
	}
	if len(visited) != snap.Len() {
		return fmt.Errorf("snapshot: %d of %d cells unreachable from root", snap.Len()-len(visited), snap.Len())
	}
	for id, cell := range snap.Cells {
		if cell.ID != id {
			return fmt.Errorf("snapshot: cell stored under %q reports id %q", id, cell.ID)
		}
		for _, terminal := range []model.CellID{cell.Source, cell.Target} {
			if terminal != model.None && snap.Cell(terminal) == nil {
				return model.UnknownCellError{ID: terminal}
			}
		}
	}
	return nil
}

func clampIndex(index, count int) int {
	if index < 0 || index > count {
		return count
	}
	return index
}
