package graph

import (
	"fmt"
	"strconv"

	"diagramcore/pkg/model"
)

// Replay executes one recorded change against the model, forward or
// inverse, going through the normal transaction protocol so the replay
// records a fresh, invertible change of its own. The undo manager drives
// this; Replay validates each step against the live arena and fails with a
// typed error when the model has diverged from the history, leaving the
// arena untouched for that step.
func (m *Model) Replay(ch model.Change, inverse bool) error {
	switch ch := ch.(type) {
	case *model.RootChange:
		next := ch.Next
		if inverse {
			next = ch.Previous
		}
		m.execute(&model.RootChange{Previous: m.Snapshot(), Next: next.Clone()})
		return nil
	case *model.ChildChange:
		return m.replayChild(ch, inverse)
	case *model.TerminalChange:
		terminal := ch.Terminal
		if inverse {
			terminal = ch.Previous
		}
		return m.SetTerminal(ch.Edge, ch.Source, terminal)
	case *model.GeometryChange:
		geometry := ch.Geometry
		if inverse {
			geometry = ch.Previous
		}
		return m.SetGeometry(ch.Cell, geometry)
	case *model.StyleChange:
		style := ch.Style
		if inverse {
			style = ch.Previous
		}
		return m.SetStyle(ch.Cell, style)
	case *model.ValueChange:
		value := ch.Value
		if inverse {
			value = ch.Previous
		}
		return m.SetValue(ch.Cell, value)
	case *model.VisibilityChange:
		visible := ch.Visible
		if inverse {
			visible = ch.Previous
		}
		return m.SetVisible(ch.Cell, visible)
	case *model.CollapseChange:
		collapsed := ch.Collapsed
		if inverse {
			collapsed = ch.Previous
		}
		return m.SetCollapsed(ch.Cell, collapsed)
	default:
		return fmt.Errorf("replay: unsupported change %T", ch)
	}
}

// replayChild re-executes a structural change in the requested direction.
// Detachments require the cell to be present and childless again (its
// descendants' changes replay first in a well-formed entry); attachments
// restore the recorded snapshot under its recorded parent and index.
func (m *Model) replayChild(ch *model.ChildChange, inverse bool) error {
	if ch.Child == nil {
		return fmt.Errorf("replay: child change without cell record")
	}
	id := ch.Child.ID
	parent, index := ch.Parent, ch.Index
	if inverse {
		parent, index = ch.Previous, ch.PreviousIndex
	}
	live, exists := m.cells[id]

	if parent == model.None {
		if !exists {
			return model.UnknownCellError{ID: id}
		}
		if len(live.Children) > 0 {
			return fmt.Errorf("replay: cell %q still has %d children", id, len(live.Children))
		}
		prevIndex := -1
		if previous, ok := m.cells[live.Parent]; ok {
			prevIndex = previous.ChildIndex(id)
		}
		m.execute(&model.ChildChange{
			Child:         live.Clone(),
			Parent:        model.None,
			Previous:      live.Parent,
			Index:         -1,
			PreviousIndex: prevIndex,
		})
		return nil
	}

	if _, ok := m.cells[parent]; !ok {
		return model.UnknownCellError{ID: parent}
	}
	if !exists {
		m.execute(&model.ChildChange{
			Child:         ch.Child.Clone(),
			Parent:        parent,
			Previous:      model.None,
			Index:         index,
			PreviousIndex: -1,
		})
		return nil
	}
	if parent == id || m.IsAncestor(id, parent) {
		return model.CyclicStructureError{Cell: id, Parent: parent}
	}
	prevIndex := -1
	if previous, ok := m.cells[live.Parent]; ok {
		prevIndex = previous.ChildIndex(id)
	}
	m.execute(&model.ChildChange{
		Child:         live.Clone(),
		Parent:        parent,
		Previous:      live.Parent,
		Index:         index,
		PreviousIndex: prevIndex,
	})
	return nil
}

// applyChange mutates the arena per ch; forward applies the recorded new
// values, reverse the previous ones. Validation happens before this point,
// so applyChange itself never fails.
func (m *Model) applyChange(ch model.Change, forward bool) {
	switch ch := ch.(type) {
	case *model.RootChange:
		snap := ch.Next
		if !forward {
			snap = ch.Previous
		}
		m.loadSnapshot(snap)
	case *model.ChildChange:
		m.applyChildChange(ch, forward)
	case *model.TerminalChange:
		terminal := ch.Terminal
		if !forward {
			terminal = ch.Previous
		}
		m.applyTerminal(ch.Edge, ch.Source, terminal)
	case *model.GeometryChange:
		if cell, ok := m.cells[ch.Cell]; ok {
			if forward {
				cell.Geometry = ch.Geometry
			} else {
				cell.Geometry = ch.Previous
			}
		}
	case *model.StyleChange:
		if cell, ok := m.cells[ch.Cell]; ok {
			if forward {
				cell.Style = ch.Style
			} else {
				cell.Style = ch.Previous
			}
		}
	case *model.ValueChange:
		if cell, ok := m.cells[ch.Cell]; ok {
			if forward {
				cell.Value = ch.Value
			} else {
				cell.Value = ch.Previous
			}
		}
	case *model.VisibilityChange:
		if cell, ok := m.cells[ch.Cell]; ok {
			if forward {
				cell.Visible = ch.Visible
			} else {
				cell.Visible = ch.Previous
			}
		}
	case *model.CollapseChange:
		if cell, ok := m.cells[ch.Cell]; ok {
			if forward {
				cell.Collapsed = ch.Collapsed
			} else {
				cell.Collapsed = ch.Previous
			}
		}
	}
}

func (m *Model) applyChildChange(ch *model.ChildChange, forward bool) {
	id := ch.Child.ID
	parent, index := ch.Parent, ch.Index
	if !forward {
		parent, index = ch.Previous, ch.PreviousIndex
	}
	if parent == model.None {
		m.detachCell(id)
		return
	}
	if live, ok := m.cells[id]; ok {
		m.moveCell(live, parent, index)
		return
	}
	m.attachCell(ch.Child.Clone(), parent, index)
}

// detachCell removes a cell from its parent's child list, the incident
// index, and the arena.
func (m *Model) detachCell(id model.CellID) {
	cell, ok := m.cells[id]
	if !ok {
		return
	}
	if parent, ok := m.cells[cell.Parent]; ok {
		if i := parent.ChildIndex(id); i >= 0 {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
		}
	}
	cell.Parent = model.None
	if cell.Edge {
		m.removeEdgeRef(cell.Source, id)
		m.removeEdgeRef(cell.Target, id)
	}
	delete(m.edges, id)
	delete(m.cells, id)
}

// attachCell stores cell in the arena beneath parent. The parent is present
// in every well-formed sequence; edge terminal references may resolve later
// within the same replayed transaction, so the incident index accepts ids
// that are not in the arena yet.
func (m *Model) attachCell(cell *model.Cell, parent model.CellID, index int) {
	cell.Parent = parent
	m.cells[cell.ID] = cell
	m.spliceChild(parent, cell.ID, index)
	if cell.Edge {
		m.addEdgeRef(cell.Source, cell.ID)
		m.addEdgeRef(cell.Target, cell.ID)
	}
}

func (m *Model) moveCell(cell *model.Cell, parent model.CellID, index int) {
	if previous, ok := m.cells[cell.Parent]; ok {
		if i := previous.ChildIndex(cell.ID); i >= 0 {
			previous.Children = append(previous.Children[:i], previous.Children[i+1:]...)
		}
	}
	cell.Parent = parent
	m.spliceChild(parent, cell.ID, index)
}

func (m *Model) spliceChild(parent, child model.CellID, index int) {
	target, ok := m.cells[parent]
	if !ok {
		return
	}
	index = clampIndex(index, len(target.Children))
	target.Children = append(target.Children, model.None)
	copy(target.Children[index+1:], target.Children[index:])
	target.Children[index] = child
}

// applyTerminal rewires one end of an edge and keeps the incident index in
// step. A self-loop stays indexed under its terminal until neither end
// references it.
func (m *Model) applyTerminal(edgeID model.CellID, source bool, terminal model.CellID) {
	edge, ok := m.cells[edgeID]
	if !ok {
		return
	}
	previous := edge.Terminal(source)
	edge.SetTerminal(source, terminal)
	if previous != model.None && previous != edge.Source && previous != edge.Target {
		m.removeEdgeRef(previous, edgeID)
	}
	if terminal != model.None {
		m.addEdgeRef(terminal, edgeID)
	}
}

func (m *Model) addEdgeRef(terminal, edgeID model.CellID) {
	if terminal == model.None {
		return
	}
	for _, existing := range m.edges[terminal] {
		if existing == edgeID {
			return
		}
	}
	m.edges[terminal] = append(m.edges[terminal], edgeID)
}

func (m *Model) removeEdgeRef(terminal, edgeID model.CellID) {
	if terminal == model.None {
		return
	}
	incident := m.edges[terminal]
	for i, existing := range incident {
		if existing == edgeID {
			incident = append(incident[:i], incident[i+1:]...)
			if len(incident) == 0 {
				delete(m.edges, terminal)
			} else {
				m.edges[terminal] = incident
			}
			return
		}
	}
}

// loadSnapshot replaces the arena wholesale and rebuilds the incident index
// in document order. The id sequence continues past both the snapshot's
// recorded sequence and any numeric id it contains.
func (m *Model) loadSnapshot(snap model.Snapshot) {
	m.cells = make(map[model.CellID]*model.Cell, len(snap.Cells))
	m.edges = make(map[model.CellID][]model.CellID)
	for id, cell := range snap.Cells {
		m.cells[id] = cell.Clone()
	}
	m.root = snap.Root
	m.indexEdges(m.root)
	if snap.Sequence > m.seq {
		m.seq = snap.Sequence
	}
	for id := range m.cells {
		if n, err := strconv.ParseUint(string(id), 10, 64); err == nil && n >= m.seq {
			m.seq = n + 1
		}
	}
}

func (m *Model) indexEdges(id model.CellID) {
	cell, ok := m.cells[id]
	if !ok {
		return
	}
	if cell.Edge {
		m.addEdgeRef(cell.Source, cell.ID)
		m.addEdgeRef(cell.Target, cell.ID)
	}
	for _, child := range cell.Children {
		m.indexEdges(child)
	}
}
