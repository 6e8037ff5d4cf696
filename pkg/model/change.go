package model

// Change is one undoable mutation captured during a transaction. The set of
// implementations is closed; consumers dispatch with a type switch over the
// pointer variants below. Every variant records both the previous and the
// new value so it can be replayed in either direction.
type Change interface {
	// Subject reports the cell the change is anchored to. RootChange,
	// which replaces the whole arena, reports None.
	Subject() CellID

	sealed()
}

// RootChange replaces the entire cell arena. It is recorded when a document
// is loaded or reset; replaying it in reverse restores the previous arena
// wholesale.
type RootChange struct {
	Previous Snapshot
	Next     Snapshot
}

// ChildChange links a cell beneath a parent, moves it to a new parent or
// index, or detaches it from the tree. Parent None means the cell left the
// arena; Previous None means it entered it. Child carries the full record as
// captured when the change was recorded so a detached cell can be restored
// on replay.
type ChildChange struct {
	Child         *Cell
	Parent        CellID
	Previous      CellID
	Index         int
	PreviousIndex int
}

// TerminalChange rewires one end of an edge. Source selects which end.
type TerminalChange struct {
	Edge     CellID
	Source   bool
	Terminal CellID
	Previous CellID
}

// GeometryChange replaces a cell's geometry.
type GeometryChange struct {
	Cell     CellID
	Geometry *Geometry
	Previous *Geometry
}

// StyleChange replaces a cell's style.
type StyleChange struct {
	Cell     CellID
	Style    Style
	Previous Style
}

// ValueChange replaces a cell's user value.
type ValueChange struct {
	Cell     CellID
	Value    any
	Previous any
}

// VisibilityChange toggles whether a cell is rendered.
type VisibilityChange struct {
	Cell     CellID
	Visible  bool
	Previous bool
}

// CollapseChange toggles whether a group hides its children.
type CollapseChange struct {
	Cell      CellID
	Collapsed bool
	Previous  bool
}

// Subject implements Change.
func (c *RootChange) Subject() CellID { return None }

// Subject implements Change.
func (c *ChildChange) Subject() CellID {
	if c.Child == nil {
		return None
	}
	return c.Child.ID
}

// Subject implements Change.
func (c *TerminalChange) Subject() CellID { return c.Edge }

// Subject implements Change.
func (c *GeometryChange) Subject() CellID { return c.Cell }

// Subject implements Change.
func (c *StyleChange) Subject() CellID { return c.Cell }

// Subject implements Change.
func (c *ValueChange) Subject() CellID { return c.Cell }

// Subject implements Change.
func (c *VisibilityChange) Subject() CellID { return c.Cell }

// Subject implements Change.
func (c *CollapseChange) Subject() CellID { return c.Cell }

func (c *RootChange) sealed()       {}
func (c *ChildChange) sealed()      {}
func (c *TerminalChange) sealed()   {}
func (c *GeometryChange) sealed()   {}
func (c *StyleChange) sealed()      {}
func (c *ValueChange) sealed()      {}
func (c *VisibilityChange) sealed() {}
func (c *CollapseChange) sealed()   {}

// Edit is the unit of change notification and of undo history: the ordered
// changes captured by one outermost transaction.
type Edit struct {
	Changes []Change
}

// Empty reports whether the edit carries no changes.
func (e *Edit) Empty() bool {
	return e == nil || len(e.Changes) == 0
}
