// Package view maintains the derived per-cell state cache for a document
// model: absolute geometry, resolved styles, and edge routes, invalidated
// incrementally by change events and brought back up to date in dependency
// order by Validate.
package view

import "diagramcore/pkg/model"

// CellState is the derived, cache-owned data for one live cell. Bounds are
// in world coordinates; Origin is the point the cell's children resolve
// their own coordinates against. Edge states carry the computed route in
// AbsolutePoints; Unrenderable marks an edge whose route could not be
// resolved this pass.
type CellState struct {
	Cell           model.CellID
	Origin         model.Point
	Bounds         model.Rect
	Style          model.Style
	AbsolutePoints []model.Point
	Unrenderable   bool
}

// Clone returns a deep copy of the state.
func (s *CellState) Clone() *CellState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Style = s.Style.Clone()
	if s.AbsolutePoints != nil {
		clone.AbsolutePoints = append([]model.Point(nil), s.AbsolutePoints...)
	}
	return &clone
}

// StyleResolver computes a cell's effective style from its record and its
// parent's resolved style. Resolvers must be deterministic in those two
// inputs.
type StyleResolver func(cell *model.Cell, parent model.Style) model.Style

// GeometryTransformer computes a cell's absolute bounds from its record and
// its parent's state. The parent state is nil only for the root.
type GeometryTransformer func(cell *model.Cell, parent *CellState) model.Rect

// TerminalFallback resolves the route point for an edge end whose terminal
// state is unavailable, in the edge's parent coordinate space. Returning
// ok=false marks the edge unrenderable for this pass.
type TerminalFallback func(edge *model.Cell, source bool) (model.Point, bool)

// DefaultStyleResolver overlays the cell's own style entries on the
// parent's resolved style, so presentation attributes inherit down the
// ancestor chain until overridden.
func DefaultStyleResolver(cell *model.Cell, parent model.Style) model.Style {
	return parent.Merged(cell.Style)
}

// DefaultGeometryTransformer offsets the cell's geometry by the parent
// state's origin. Relative geometries position fractionally within the
// parent's bounds before their offset applies; cells without geometry sit
// at the parent origin.
func DefaultGeometryTransformer(cell *model.Cell, parent *CellState) model.Rect {
	var origin model.Point
	if parent != nil {
		origin = parent.Origin
	}
	geo := cell.Geometry
	if geo == nil {
		return model.Rect{X: origin.X, Y: origin.Y}
	}
	bounds := geo.Rect
	if geo.Relative && parent != nil {
		bounds.X = origin.X + geo.X*parent.Bounds.Width
		bounds.Y = origin.Y + geo.Y*parent.Bounds.Height
	} else {
		bounds.X += origin.X
		bounds.Y += origin.Y
	}
	if geo.Offset != nil {
		bounds.X += geo.Offset.X
		bounds.Y += geo.Offset.Y
	}
	return bounds
}

// DefaultTerminalFallback routes a dangling end to the edge geometry's
// fixed point when one is set and otherwise reports the edge unrenderable
// for this pass.
func DefaultTerminalFallback(edge *model.Cell, source bool) (model.Point, bool) {
	if p := edge.Geometry.TerminalPoint(source); p != nil {
		return *p, true
	}
	return model.Point{}, false
}

// Option configures a Cache.
type Option func(*Cache)

// WithStyleResolver replaces the style resolver.
func WithStyleResolver(resolve StyleResolver) Option {
	return func(c *Cache) {
		if resolve != nil {
			c.resolveStyle = resolve
		}
	}
}

// WithGeometryTransformer replaces the geometry transformer.
func WithGeometryTransformer(transform GeometryTransformer) Option {
	return func(c *Cache) {
		if transform != nil {
			c.transform = transform
		}
	}
}

// WithTerminalFallback replaces the edge terminal fallback rule.
func WithTerminalFallback(fallback TerminalFallback) Option {
	return func(c *Cache) {
		if fallback != nil {
			c.fallback = fallback
		}
	}
}
