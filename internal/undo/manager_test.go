package undo

import (
	"errors"
	"testing"

	"diagramcore/internal/graph"
	"diagramcore/pkg/model"
)

func newManagedModel(t *testing.T, capacity int) (*graph.Model, *Manager) {
	t.Helper()
	m := graph.NewModel()
	mgr := NewManager(m, capacity)
	mgr.Attach()
	return m, mgr
}

func insertVertex(t *testing.T, m *graph.Model, value any) model.CellID {
	t.Helper()
	id, err := m.InsertVertex(model.None, value, &model.Geometry{Rect: model.Rect{Width: 60, Height: 30}}, nil)
	if err != nil {
		t.Fatalf("insert vertex: %v", err)
	}
	return id
}

// assertSameDocument compares two snapshots cell by cell, treating a nil
// child list and an empty one as equal.
func assertSameDocument(t *testing.T, got, want model.Snapshot) {
	t.Helper()
	if got.Root != want.Root {
		t.Fatalf("root %q, want %q", got.Root, want.Root)
	}
	if len(got.Cells) != len(want.Cells) {
		t.Fatalf("%d cells, want %d", len(got.Cells), len(want.Cells))
	}
	for id, wantCell := range want.Cells {
		gotCell := got.Cell(id)
		if gotCell == nil {
			t.Fatalf("cell %q missing", id)
		}
		if gotCell.Parent != wantCell.Parent {
			t.Fatalf("cell %q parent %q, want %q", id, gotCell.Parent, wantCell.Parent)
		}
		if gotCell.Value != wantCell.Value {
			t.Fatalf("cell %q value %v, want %v", id, gotCell.Value, wantCell.Value)
		}
		if gotCell.Source != wantCell.Source || gotCell.Target != wantCell.Target {
			t.Fatalf("cell %q terminals %q/%q, want %q/%q", id, gotCell.Source, gotCell.Target, wantCell.Source, wantCell.Target)
		}
		if gotCell.Visible != wantCell.Visible || gotCell.Collapsed != wantCell.Collapsed {
			t.Fatalf("cell %q flags differ", id)
		}
		if len(gotCell.Children) != len(wantCell.Children) {
			t.Fatalf("cell %q children %v, want %v", id, gotCell.Children, wantCell.Children)
		}
		for i := range wantCell.Children {
			if gotCell.Children[i] != wantCell.Children[i] {
				t.Fatalf("cell %q children %v, want %v", id, gotCell.Children, wantCell.Children)
			}
		}
		if (gotCell.Geometry == nil) != (wantCell.Geometry == nil) {
			t.Fatalf("cell %q geometry presence differs", id)
		}
		if gotCell.Geometry != nil && gotCell.Geometry.Rect != wantCell.Geometry.Rect {
			t.Fatalf("cell %q geometry %+v, want %+v", id, gotCell.Geometry.Rect, wantCell.Geometry.Rect)
		}
	}
}

func TestUndoRedoInverseLaw(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	v1 := insertVertex(t, m, "v1")
	v2 := insertVertex(t, m, "v2")
	if _, err := m.InsertEdge(model.None, "link", nil, v1, v2); err != nil {
		t.Fatalf("insert edge: %v", err)
	}
	before := m.Snapshot()

	err := m.Batch(func() error {
		if err := m.SetValue(v1, "renamed"); err != nil {
			return err
		}
		if err := m.SetGeometry(v1, &model.Geometry{Rect: model.Rect{X: 100, Y: 100, Width: 60, Height: 30}}); err != nil {
			return err
		}
		return m.Remove(v2)
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	after := m.Snapshot()

	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	assertSameDocument(t, m.Snapshot(), before)

	if err := mgr.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	assertSameDocument(t, m.Snapshot(), after)
}

func TestSingleUndoRestoresValueAcrossNestedTransaction(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	c := insertVertex(t, m, "original")

	m.BeginUpdate()
	m.BeginUpdate()
	if err := m.SetValue(c, "x"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	m.EndUpdate()
	if err := m.SetValue(c, "y"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	m.EndUpdate()

	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	cell, _ := m.Cell(c)
	if cell.Value != "original" {
		t.Fatalf("value %v after one undo, want original", cell.Value)
	}
}

func TestUndoRemovalRestoresTerminalWiring(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	v1 := insertVertex(t, m, "v1")
	v2 := insertVertex(t, m, "v2")
	e, err := m.InsertEdge(model.None, nil, nil, v1, v2)
	if err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	if err := m.Remove(v1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	edge, _ := m.Cell(e)
	if edge.Source != model.None {
		t.Fatalf("terminal not detached by removal")
	}

	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	edge, _ = m.Cell(e)
	if edge.Source != v1 {
		t.Fatalf("terminal %q after undo, want %q", edge.Source, v1)
	}
	if incident := m.Edges(v1); len(incident) != 1 || incident[0] != e {
		t.Fatalf("incident index after undo: %v", incident)
	}

	if err := mgr.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if m.Contains(v1) {
		t.Fatalf("redo did not remove the vertex again")
	}
}

func TestNewEditDiscardsRedoBranch(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	c := insertVertex(t, m, "a")
	if err := m.SetValue(c, "b"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !mgr.CanRedo() {
		t.Fatalf("expected redo available after undo")
	}
	if err := m.SetValue(c, "c"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if mgr.CanRedo() {
		t.Fatalf("new edit should discard the redo branch")
	}
	if err := mgr.Redo(); err != nil {
		t.Fatalf("redo after discard should be a no-op: %v", err)
	}
	cell, _ := m.Cell(c)
	if cell.Value != "c" {
		t.Fatalf("value %v, want c", cell.Value)
	}
}

func TestCapacityEvictsFromOldestEnd(t *testing.T) {
	m, mgr := newManagedModel(t, 2)
	c := insertVertex(t, m, "v0")
	for _, v := range []string{"v1", "v2", "v3"} {
		if err := m.SetValue(c, v); err != nil {
			t.Fatalf("set value: %v", err)
		}
	}
	if mgr.Len() != 2 {
		t.Fatalf("history length %d, want 2", mgr.Len())
	}

	// Two undos are available, then the history bottoms out.
	for i := 0; i < 2; i++ {
		if !mgr.CanUndo() {
			t.Fatalf("undo %d unavailable", i)
		}
		if err := mgr.Undo(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	if mgr.CanUndo() {
		t.Fatalf("expected history exhausted")
	}
	cell, _ := m.Cell(c)
	if cell.Value != "v1" {
		t.Fatalf("value %v after bounded undos, want v1", cell.Value)
	}
}

func TestUndoOnEmptyHistoryIsNoop(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo on empty history: %v", err)
	}
	if err := mgr.Redo(); err != nil {
		t.Fatalf("redo on empty history: %v", err)
	}
	if m.CellCount() != 2 {
		t.Fatalf("no-op replay touched the model")
	}
}

func TestEmptyEditRecordsAndUndoesAsNoop(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	mgr.Record(&model.Edit{})
	if mgr.Len() != 1 || !mgr.CanUndo() {
		t.Fatalf("empty edit not recorded")
	}
	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo empty edit: %v", err)
	}
	if m.CellCount() != 2 {
		t.Fatalf("empty undo touched the model")
	}
}

func TestReplayedTransactionsAreNotRecorded(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	c := insertVertex(t, m, "a")
	if err := m.SetValue(c, "b"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	recorded := mgr.Len()
	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if err := mgr.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if mgr.Len() != recorded {
		t.Fatalf("replay grew the history from %d to %d", recorded, mgr.Len())
	}
}

func TestDivergedHistoryFailsWithoutTouchingModel(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	c := insertVertex(t, m, "a")
	if err := m.SetValue(c, "b"); err != nil {
		t.Fatalf("set value: %v", err)
	}

	// Remove the cell behind the manager's back.
	mgr.replaying = true
	if err := m.Remove(c); err != nil {
		t.Fatalf("remove: %v", err)
	}
	mgr.replaying = false

	before := m.Snapshot()
	err := mgr.Undo()
	if err == nil {
		t.Fatalf("expected divergence error")
	}
	var unknown model.UnknownCellError
	if !errors.As(err, &unknown) || unknown.ID != c {
		t.Fatalf("divergence error %v, want UnknownCellError for %q", err, c)
	}
	assertSameDocument(t, m.Snapshot(), before)
	if !mgr.CanUndo() {
		t.Fatalf("cursor moved despite failed undo")
	}
}

func TestClearDropsHistory(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	c := insertVertex(t, m, "a")
	if err := m.SetValue(c, "b"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	mgr.Clear()
	if mgr.CanUndo() || mgr.CanRedo() || mgr.Len() != 0 {
		t.Fatalf("clear left history behind")
	}
}

func TestUndoRedoAcrossRootChange(t *testing.T) {
	m, mgr := newManagedModel(t, 0)
	old := insertVertex(t, m, "old")
	next := model.Snapshot{
		Root: "r",
		Cells: map[model.CellID]*model.Cell{
			"r": {ID: "r", Children: []model.CellID{"n"}},
			"n": {ID: "n", Parent: "r", Vertex: true, Visible: true, Value: "new"},
		},
	}
	if err := m.SetRoot(next); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := mgr.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if m.Root() != graph.RootID || !m.Contains(old) {
		t.Fatalf("undo did not restore the previous document")
	}
	if err := mgr.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if m.Root() != "r" || m.Contains(old) {
		t.Fatalf("redo did not reload the new document")
	}
}
