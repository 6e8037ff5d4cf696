package model

import "fmt"

// UnknownCellError reports an operation that referenced a cell id absent
// from the model.
type UnknownCellError struct {
	ID CellID
}

func (e UnknownCellError) Error() string {
	return fmt.Sprintf("unknown cell %q", string(e.ID))
}

// DuplicateCellError reports an insert whose id is already present in the
// arena.
type DuplicateCellError struct {
	ID CellID
}

func (e DuplicateCellError) Error() string {
	return fmt.Sprintf("duplicate cell %q", string(e.ID))
}

// CyclicStructureError reports a reparent that would make a cell an ancestor
// of itself.
type CyclicStructureError struct {
	Cell   CellID
	Parent CellID
}

func (e CyclicStructureError) Error() string {
	return fmt.Sprintf("cell %q cannot be parented under its descendant %q", string(e.Cell), string(e.Parent))
}

// InvalidTerminalError reports an edge terminal assignment that cannot be
// satisfied.
type InvalidTerminalError struct {
	Edge     CellID
	Terminal CellID
	Reason   string
}

func (e InvalidTerminalError) Error() string {
	return fmt.Sprintf("invalid terminal %q for edge %q: %s", string(e.Terminal), string(e.Edge), e.Reason)
}
