// Package model defines the cell records, geometry and style value types,
// change variants, and error types shared by the graph engine, the view
// cache, and their consumers.
package model

// CellID uniquely identifies a cell within one diagram document.
type CellID string

// None is the absent cell reference used for detached parents and terminals.
const None CellID = ""

// Cell is a single record in the diagram tree. Vertices, edges, layers, and
// the root are all cells; group structure and terminal wiring are expressed
// through id references rather than pointers so records stay cheap to clone
// and serialize.
type Cell struct {
	ID          CellID    `json:"id"`
	Value       any       `json:"value,omitempty"`
	Geometry    *Geometry `json:"geometry,omitempty"`
	Style       Style     `json:"style,omitempty"`
	Vertex      bool      `json:"vertex,omitempty"`
	Edge        bool      `json:"edge,omitempty"`
	Connectable bool      `json:"connectable"`
	Visible     bool      `json:"visible"`
	Collapsed   bool      `json:"collapsed,omitempty"`
	Parent      CellID    `json:"parent,omitempty"`
	Children    []CellID  `json:"children,omitempty"`
	Source      CellID    `json:"source,omitempty"`
	Target      CellID    `json:"target,omitempty"`
}

// Terminal returns the source or target reference of an edge cell.
func (c *Cell) Terminal(source bool) CellID {
	if source {
		return c.Source
	}
	return c.Target
}

// SetTerminal assigns the source or target reference of an edge cell.
func (c *Cell) SetTerminal(source bool, id CellID) {
	if source {
		c.Source = id
	} else {
		c.Target = id
	}
}

// ChildIndex returns the position of child within c.Children, or -1 when the
// id is not a direct child.
func (c *Cell) ChildIndex(child CellID) int {
	for i, id := range c.Children {
		if id == child {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the cell record. Geometry, style, and the
// children list are copied; Value is carried by reference and treated as
// immutable by the engine.
func (c *Cell) Clone() *Cell {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Geometry = c.Geometry.Clone()
	clone.Style = c.Style.Clone()
	if c.Children != nil {
		clone.Children = append([]CellID(nil), c.Children...)
	}
	return &clone
}
