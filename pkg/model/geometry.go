package model

// Point is a coordinate pair in diagram space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in diagram space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Geometry carries the spatial data of a cell. For vertices the rectangle is
// the cell's bounds in its parent's coordinate space, or a fractional
// position when Relative is set. For edges the rectangle is unused and the
// optional fixed terminal points and waypoints describe the route.
type Geometry struct {
	Rect
	Relative    bool    `json:"relative,omitempty"`
	Offset      *Point  `json:"offset,omitempty"`
	SourcePoint *Point  `json:"source_point,omitempty"`
	TargetPoint *Point  `json:"target_point,omitempty"`
	Points      []Point `json:"points,omitempty"`
}

// Clone returns a deep copy of the geometry.
func (g *Geometry) Clone() *Geometry {
	if g == nil {
		return nil
	}
	clone := *g
	if g.Offset != nil {
		offset := *g.Offset
		clone.Offset = &offset
	}
	if g.SourcePoint != nil {
		point := *g.SourcePoint
		clone.SourcePoint = &point
	}
	if g.TargetPoint != nil {
		point := *g.TargetPoint
		clone.TargetPoint = &point
	}
	if g.Points != nil {
		clone.Points = append([]Point(nil), g.Points...)
	}
	return &clone
}

// TerminalPoint returns the fixed source or target point, or nil when the
// route end is determined by a connected terminal cell.
func (g *Geometry) TerminalPoint(source bool) *Point {
	if g == nil {
		return nil
	}
	if source {
		return g.SourcePoint
	}
	return g.TargetPoint
}

// SetTerminalPoint assigns the fixed source or target point.
func (g *Geometry) SetTerminalPoint(source bool, p *Point) {
	if source {
		g.SourcePoint = p
	} else {
		g.TargetPoint = p
	}
}

// Translate moves an absolute geometry by the given delta. Relative
// geometries keep their fractional position and shift their offset instead.
func (g *Geometry) Translate(dx, dy float64) {
	if g.Relative {
		if g.Offset == nil {
			g.Offset = &Point{}
		}
		g.Offset.X += dx
		g.Offset.Y += dy
		return
	}
	g.X += dx
	g.Y += dy
}
