package model

// Snapshot is a self-contained copy of a document's cell arena. The engine
// emits one inside RootChange records and after committed transactions for
// persistence; consumers may hold it indefinitely because it shares no
// memory with the live arena.
type Snapshot struct {
	Root     CellID           `json:"root"`
	Cells    map[CellID]*Cell `json:"cells"`
	Sequence uint64           `json:"sequence,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	clone := Snapshot{Root: s.Root, Sequence: s.Sequence}
	if s.Cells != nil {
		clone.Cells = make(map[CellID]*Cell, len(s.Cells))
		for id, cell := range s.Cells {
			clone.Cells[id] = cell.Clone()
		}
	}
	return clone
}

// Cell returns the record stored under id, or nil.
func (s Snapshot) Cell(id CellID) *Cell {
	if s.Cells == nil {
		return nil
	}
	return s.Cells[id]
}

// Len reports the number of cells in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Cells)
}
