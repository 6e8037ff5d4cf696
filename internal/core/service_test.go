package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"diagramcore/internal/graph"
	"diagramcore/pkg/model"
)

func insertTestVertex(t *testing.T, svc *Service, parent model.CellID, x, y, w, h float64) model.CellID {
	t.Helper()
	id, err := svc.InsertVertex(context.Background(), parent, nil,
		&model.Geometry{Rect: model.Rect{X: x, Y: y, Width: w, Height: h}}, nil)
	if err != nil {
		t.Fatalf("insert vertex: %v", err)
	}
	return id
}

func TestInsertBuildsDocument(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	v1 := insertTestVertex(t, svc, model.None, 10, 20, 30, 40)
	v2 := insertTestVertex(t, svc, model.None, 100, 100, 50, 50)
	edge, err := svc.InsertEdge(ctx, model.None, "link", nil, v1, v2)
	if err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	if got := svc.CellCount(); got != 5 {
		t.Fatalf("cell count = %d, want 5", got)
	}
	children := svc.Children(svc.DefaultParent())
	if want := []model.CellID{v1, v2, edge}; !reflect.DeepEqual(children, want) {
		t.Fatalf("layer children = %v, want %v", children, want)
	}

	cell, ok := svc.Cell(edge)
	if !ok {
		t.Fatalf("edge not found")
	}
	if !cell.Edge || cell.Source != v1 || cell.Target != v2 {
		t.Fatalf("unexpected edge record: %+v", cell)
	}
	if cell.Value != "link" {
		t.Fatalf("edge value = %v, want link", cell.Value)
	}
}

func TestRemoveCellDetachesOutsideEdges(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	v1 := insertTestVertex(t, svc, model.None, 0, 0, 10, 10)
	v2 := insertTestVertex(t, svc, model.None, 50, 50, 10, 10)
	edge, err := svc.InsertEdge(ctx, model.None, nil, nil, v1, v2)
	if err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	if err := svc.RemoveCell(ctx, v1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := svc.Cell(v1); ok {
		t.Fatalf("expected %q to be gone", v1)
	}
	cell, ok := svc.Cell(edge)
	if !ok {
		t.Fatalf("edge should survive removal of its terminal")
	}
	if cell.Source != model.None || cell.Target != v2 {
		t.Fatalf("expected source detached, got %+v", cell)
	}
}

func TestMoveCellReparents(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	group := insertTestVertex(t, svc, model.None, 0, 0, 100, 100)
	v := insertTestVertex(t, svc, model.None, 10, 10, 20, 20)

	if err := svc.MoveCell(ctx, v, group, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := svc.Children(group); !reflect.DeepEqual(got, []model.CellID{v}) {
		t.Fatalf("group children = %v, want [%s]", got, v)
	}
	if got := svc.Children(svc.DefaultParent()); !reflect.DeepEqual(got, []model.CellID{group}) {
		t.Fatalf("layer children = %v, want [%s]", got, group)
	}

	// Moving a cell beneath its own descendant must fail.
	if err := svc.MoveCell(ctx, group, v, 0); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestConnectEdgeRewiresTerminal(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	v1 := insertTestVertex(t, svc, model.None, 0, 0, 10, 10)
	v2 := insertTestVertex(t, svc, model.None, 50, 0, 10, 10)
	v3 := insertTestVertex(t, svc, model.None, 100, 0, 10, 10)
	edge, err := svc.InsertEdge(ctx, model.None, nil, nil, v1, v2)
	if err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	if err := svc.ConnectEdge(ctx, edge, false, v3); err != nil {
		t.Fatalf("connect: %v", err)
	}
	cell, _ := svc.Cell(edge)
	if cell.Target != v3 {
		t.Fatalf("target = %q, want %q", cell.Target, v3)
	}

	if err := svc.ConnectEdge(ctx, edge, true, model.None); err != nil {
		t.Fatalf("detach: %v", err)
	}
	cell, _ = svc.Cell(edge)
	if cell.Source != model.None {
		t.Fatalf("expected detached source, got %q", cell.Source)
	}

	// Vertices cannot carry terminals.
	if err := svc.ConnectEdge(ctx, v1, true, v2); err == nil {
		t.Fatalf("expected terminal error for vertex")
	}
}

func TestPropertyOperationsUpdateCells(t *testing.T) {
	svc := NewService()
	ctx := context.Background()
	v := insertTestVertex(t, svc, model.None, 0, 0, 10, 10)

	if err := svc.SetGeometry(ctx, v, &model.Geometry{Rect: model.Rect{X: 5, Y: 6, Width: 7, Height: 8}}); err != nil {
		t.Fatalf("set geometry: %v", err)
	}
	if err := svc.SetStyle(ctx, v, model.Style{"fill": "red"}); err != nil {
		t.Fatalf("set style: %v", err)
	}
	if err := svc.SetValue(ctx, v, "label"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if err := svc.SetVisibility(ctx, v, false); err != nil {
		t.Fatalf("set visibility: %v", err)
	}
	if err := svc.SetCollapsed(ctx, v, true); err != nil {
		t.Fatalf("set collapsed: %v", err)
	}

	cell, ok := svc.Cell(v)
	if !ok {
		t.Fatalf("cell missing")
	}
	if cell.Geometry == nil || cell.Geometry.Rect != (model.Rect{X: 5, Y: 6, Width: 7, Height: 8}) {
		t.Fatalf("geometry = %+v", cell.Geometry)
	}
	if cell.Style["fill"] != "red" {
		t.Fatalf("style = %v", cell.Style)
	}
	if cell.Value != "label" {
		t.Fatalf("value = %v", cell.Value)
	}
	if cell.Visible || !cell.Collapsed {
		t.Fatalf("flags = visible %v collapsed %v", cell.Visible, cell.Collapsed)
	}
}

func TestBatchCoalescesHistory(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	err := svc.Batch(ctx, func(m *graph.Model) error {
		for i := 0; i < 3; i++ {
			if _, err := m.InsertVertex(model.None, nil, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if got := svc.CellCount(); got != 5 {
		t.Fatalf("cell count = %d, want 5", got)
	}
	if got := svc.HistoryLength(); got != 1 {
		t.Fatalf("history length = %d, want 1", got)
	}

	if err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := svc.CellCount(); got != 2 {
		t.Fatalf("cell count after undo = %d, want 2", got)
	}
	if err := svc.Redo(ctx); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if got := svc.CellCount(); got != 5 {
		t.Fatalf("cell count after redo = %d, want 5", got)
	}
}

func TestBatchRollsNothingBack(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	boom := errors.New("boom")
	err := svc.Batch(ctx, func(m *graph.Model) error {
		if _, err := m.InsertVertex(model.None, nil, nil, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected batch error, got %v", err)
	}

	// Edits before the failure stay applied and stay undoable.
	if got := svc.CellCount(); got != 3 {
		t.Fatalf("cell count = %d, want 3", got)
	}
	if !svc.CanUndo() {
		t.Fatalf("expected failed batch edits to be undoable")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	v := insertTestVertex(t, svc, model.None, 10, 10, 20, 20)
	if err := svc.SetGeometry(ctx, v, &model.Geometry{Rect: model.Rect{X: 99, Y: 99, Width: 20, Height: 20}}); err != nil {
		t.Fatalf("set geometry: %v", err)
	}
	if got := svc.HistoryLength(); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}

	if err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo geometry: %v", err)
	}
	cell, _ := svc.Cell(v)
	if cell.Geometry.Rect.X != 10 {
		t.Fatalf("geometry after undo = %+v", cell.Geometry.Rect)
	}

	if err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo insert: %v", err)
	}
	if _, ok := svc.Cell(v); ok {
		t.Fatalf("expected vertex gone after undo")
	}
	if svc.CanUndo() {
		t.Fatalf("expected empty undo stack")
	}
	if err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo on empty history should be a no-op, got %v", err)
	}

	if err := svc.Redo(ctx); err != nil {
		t.Fatalf("redo insert: %v", err)
	}
	if err := svc.Redo(ctx); err != nil {
		t.Fatalf("redo geometry: %v", err)
	}
	cell, ok := svc.Cell(v)
	if !ok {
		t.Fatalf("vertex missing after redo")
	}
	if cell.Geometry.Rect.X != 99 {
		t.Fatalf("geometry after redo = %+v", cell.Geometry.Rect)
	}
	if svc.CanRedo() {
		t.Fatalf("expected empty redo stack")
	}
}

func TestReplaceDocumentIsUndoable(t *testing.T) {
	donor := NewService()
	insertTestVertex(t, donor, model.None, 0, 0, 10, 10)
	insertTestVertex(t, donor, model.None, 20, 0, 10, 10)
	snapshot := donor.Snapshot()

	svc := NewService()
	ctx := context.Background()
	if err := svc.ReplaceDocument(ctx, snapshot); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := svc.CellCount(); got != 4 {
		t.Fatalf("cell count = %d, want 4", got)
	}

	if err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo replace: %v", err)
	}
	if got := svc.CellCount(); got != 2 {
		t.Fatalf("cell count after undo = %d, want 2", got)
	}
}

func TestValidateComputesCellStates(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	v1 := insertTestVertex(t, svc, model.None, 10, 20, 40, 20)
	v2 := insertTestVertex(t, svc, model.None, 110, 120, 40, 20)
	edge, err := svc.InsertEdge(ctx, model.None, nil, nil, v1, v2)
	if err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	if err := svc.Validate(ctx); err != nil {
		t.Fatalf("validate: %v", err)
	}

	state := svc.CellState(v1)
	if state == nil {
		t.Fatalf("no state for %q", v1)
	}
	if state.Bounds != (model.Rect{X: 10, Y: 20, Width: 40, Height: 20}) {
		t.Fatalf("bounds = %+v", state.Bounds)
	}

	route := svc.CellState(edge)
	if route == nil || len(route.AbsolutePoints) != 2 {
		t.Fatalf("edge state = %+v", route)
	}
	if route.AbsolutePoints[0] != (model.Point{X: 30, Y: 30}) {
		t.Fatalf("source point = %+v", route.AbsolutePoints[0])
	}
	if route.AbsolutePoints[1] != (model.Point{X: 130, Y: 130}) {
		t.Fatalf("target point = %+v", route.AbsolutePoints[1])
	}

	if svc.CellState("missing") != nil {
		t.Fatalf("expected nil state for unknown id")
	}
}

func TestRemoveRootFails(t *testing.T) {
	svc := NewService()
	if err := svc.RemoveCell(context.Background(), svc.Root()); err == nil {
		t.Fatalf("expected removing the root to fail")
	}
}
