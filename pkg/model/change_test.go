package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestChangeSubjects(t *testing.T) {
	child := &ChildChange{Child: &Cell{ID: "2"}, Parent: "1", Index: 0}
	cases := []struct {
		name   string
		change Change
		want   CellID
	}{
		{"root", &RootChange{}, None},
		{"child", child, "2"},
		{"child without record", &ChildChange{}, None},
		{"terminal", &TerminalChange{Edge: "4", Source: true}, "4"},
		{"geometry", &GeometryChange{Cell: "2"}, "2"},
		{"style", &StyleChange{Cell: "2"}, "2"},
		{"value", &ValueChange{Cell: "3"}, "3"},
		{"visibility", &VisibilityChange{Cell: "3"}, "3"},
		{"collapse", &CollapseChange{Cell: "1"}, "1"},
	}
	for _, tc := range cases {
		if got := tc.change.Subject(); got != tc.want {
			t.Fatalf("%s: subject %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestEditEmpty(t *testing.T) {
	var nilEdit *Edit
	if !nilEdit.Empty() {
		t.Fatalf("nil edit should be empty")
	}
	if !(&Edit{}).Empty() {
		t.Fatalf("edit without changes should be empty")
	}
	edit := &Edit{Changes: []Change{&ValueChange{Cell: "2", Value: "b", Previous: "a"}}}
	if edit.Empty() {
		t.Fatalf("edit with changes should not be empty")
	}
}

func TestSnapshotCloneIsolation(t *testing.T) {
	snapshot := Snapshot{
		Root:     "0",
		Sequence: 5,
		Cells: map[CellID]*Cell{
			"0": {ID: "0", Children: []CellID{"1"}},
			"1": {ID: "1", Parent: "0", Style: Style{"k": "v"}},
		},
	}
	clone := snapshot.Clone()
	clone.Cells["1"].Style["k"] = "changed"
	clone.Cells["0"].Children[0] = "99"
	delete(clone.Cells, "1")

	if snapshot.Cell("1") == nil || snapshot.Cell("1").Style["k"] != "v" {
		t.Fatalf("snapshot clone shares cell records")
	}
	if snapshot.Cell("0").Children[0] != "1" {
		t.Fatalf("snapshot clone shares children slices")
	}
	if snapshot.Len() != 2 {
		t.Fatalf("expected 2 cells, got %d", snapshot.Len())
	}
	var empty Snapshot
	if empty.Cell("0") != nil || empty.Len() != 0 {
		t.Fatalf("empty snapshot should have no cells")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{UnknownCellError{ID: "7"}, `unknown cell "7"`},
		{DuplicateCellError{ID: "2"}, `duplicate cell "2"`},
		{CyclicStructureError{Cell: "1", Parent: "3"}, `cell "1" cannot be parented under its descendant "3"`},
		{InvalidTerminalError{Edge: "4", Terminal: "9", Reason: "terminal is not in the model"}, `invalid terminal "9" for edge "4": terminal is not in the model`},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}
}

func TestErrorsUnwrapAs(t *testing.T) {
	wrapped := fmt.Errorf("replay history entry 3: %w", UnknownCellError{ID: "12"})
	var unknown UnknownCellError
	if !errors.As(wrapped, &unknown) {
		t.Fatalf("expected UnknownCellError in chain")
	}
	if unknown.ID != "12" {
		t.Fatalf("unexpected id %q", unknown.ID)
	}
}
