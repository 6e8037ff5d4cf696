package view

import (
	"diagramcore/internal/graph"
	"diagramcore/pkg/event"
	"diagramcore/pkg/model"
)

// Cache maps live cells to their derived CellStates. It subscribes to the
// model's change events, marks affected entries invalid per change variant,
// and recomputes them in dependency order when Validate runs. Reads return
// copies; the cache owns its states exclusively.
//
// A cache shares the model's threading discipline: one logical caller at a
// time, with the service lock around both when shared across goroutines.
type Cache struct {
	model    *graph.Model
	listener event.Listener

	states  map[model.CellID]*CellState
	invalid map[model.CellID]bool

	resolveStyle StyleResolver
	transform    GeometryTransformer
	fallback     TerminalFallback
}

// NewCache returns a cache attached to m's change events, with the whole
// document marked invalid so the first Validate builds every state.
func NewCache(m *graph.Model, opts ...Option) *Cache {
	c := &Cache{
		model:        m,
		states:       make(map[model.CellID]*CellState),
		invalid:      make(map[model.CellID]bool),
		resolveStyle: DefaultStyleResolver,
		transform:    DefaultGeometryTransformer,
		fallback:     DefaultTerminalFallback,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.listener = event.ListenerFunc(c.onChange)
	m.AddListener(graph.EventChange, c.listener)
	c.invalidateTree(m.Root())
	return c
}

// Detach unsubscribes the cache from the model. States stay readable but no
// longer track changes.
func (c *Cache) Detach() {
	c.model.RemoveListener(c.listener)
}

// GetState returns a copy of the current entry for id, or nil when none
// exists. The entry may be stale if the cell was invalidated since the last
// Validate; GetState never recomputes.
func (c *Cache) GetState(id model.CellID) *CellState {
	return c.states[id].Clone()
}

// IsValid reports whether id has a state that reflects current model data.
func (c *Cache) IsValid(id model.CellID) bool {
	_, ok := c.states[id]
	return ok && !c.invalid[id]
}

// StateCount reports the number of cached states.
func (c *Cache) StateCount() int {
	return len(c.states)
}

// Invalidate marks id stale, with subtree extending the marking to every
// descendant. Edges referencing a marked cell are marked alongside it.
func (c *Cache) Invalidate(id model.CellID, subtree bool) {
	if subtree {
		c.invalidateTree(id)
		return
	}
	c.invalidateCell(id)
}

func (c *Cache) onChange(ev event.Event) {
	edit, ok := ev.Property(graph.PropertyEdit).(*model.Edit)
	if !ok {
		return
	}
	for _, ch := range edit.Changes {
		c.applyChange(ch)
	}
}

// applyChange translates one committed change into invalidations. Removals
// delete their state immediately so no reader ever sees a state for a cell
// that is gone; everything else is marked and recomputed on the next
// Validate.
func (c *Cache) applyChange(ch model.Change) {
	switch ch := ch.(type) {
	case *model.RootChange:
		c.states = make(map[model.CellID]*CellState)
		c.invalid = make(map[model.CellID]bool)
		c.invalidateTree(c.model.Root())
	case *model.ChildChange:
		id := ch.Subject()
		if ch.Parent == model.None {
			delete(c.states, id)
			delete(c.invalid, id)
			c.invalidateChain(ch.Previous)
			return
		}
		c.invalidateChain(ch.Previous)
		c.invalidateChain(ch.Parent)
		c.invalidateTree(id)
	case *model.TerminalChange:
		c.invalidateCell(ch.Edge)
	case *model.GeometryChange:
		c.invalidateTree(ch.Cell)
	case *model.StyleChange:
		c.invalidateTree(ch.Cell)
	case *model.ValueChange:
		c.mark(ch.Cell)
	case *model.VisibilityChange:
		c.invalidateTree(ch.Cell)
	case *model.CollapseChange:
		c.invalidateTree(ch.Cell)
	}
}

func (c *Cache) mark(id model.CellID) {
	if c.model.Contains(id) {
		c.invalid[id] = true
	}
}

// invalidateCell marks id and the edges referencing it.
func (c *Cache) invalidateCell(id model.CellID) {
	if !c.model.Contains(id) {
		return
	}
	c.invalid[id] = true
	for _, edge := range c.model.Edges(id) {
		c.invalid[edge] = true
	}
}

// invalidateTree marks id, its descendants, and the edges referencing any
// of them.
func (c *Cache) invalidateTree(id model.CellID) {
	if !c.model.Contains(id) {
		return
	}
	c.invalid[id] = true
	for _, edge := range c.model.Edges(id) {
		c.invalid[edge] = true
	}
	for _, child := range c.model.Children(id) {
		c.invalidateTree(child)
	}
}

// invalidateChain marks id and every ancestor up to the root. Absolute
// geometry is ancestor-relative, so a structural change dirties both ends
// of the move.
func (c *Cache) invalidateChain(id model.CellID) {
	for id != model.None && c.model.Contains(id) {
		c.invalid[id] = true
		id = c.model.Parent(id)
	}
}

// deferredEdge is an edge whose terminals were not both valid when the tree
// walk reached it; its computation moves to the second pass with the parent
// state it resolved during the walk.
type deferredEdge struct {
	id     model.CellID
	parent *CellState
}

type validation struct {
	visited  map[model.CellID]bool
	deferred []deferredEdge
	byID     map[model.CellID]int
}

// Validate recomputes every invalid entry and transitions it to valid, in
// an order that computes a parent's state before its children's and an
// edge's state after both of its terminals'. Edges whose terminals are not
// ready when the depth-first walk reaches them are deferred to a second
// pass; a terminal with no state by then is routed through the fallback
// rule. States of cells that are no longer reachable or visible are pruned.
func (c *Cache) Validate() {
	ctx := &validation{
		visited: make(map[model.CellID]bool),
		byID:    make(map[model.CellID]int),
	}
	c.validateCell(c.model.Root(), nil, ctx)

	done := make(map[model.CellID]bool)
	chasing := make(map[model.CellID]bool)
	var resolve func(i int)
	resolve = func(i int) {
		d := ctx.deferred[i]
		if done[d.id] || chasing[d.id] {
			return
		}
		chasing[d.id] = true
		cell, ok := c.model.Cell(d.id)
		if ok {
			for _, source := range []bool{true, false} {
				terminal := cell.Terminal(source)
				if terminal == model.None {
					continue
				}
				if j, deferred := ctx.byID[terminal]; deferred && !done[terminal] {
					resolve(j)
				}
			}
			state := c.ensureState(d.id)
			c.compute(state, cell, d.parent)
			delete(c.invalid, d.id)
			ctx.visited[d.id] = true
			if !cell.Collapsed {
				for _, child := range cell.Children {
					c.validateCell(child, state, ctx)
				}
			}
		}
		done[d.id] = true
		delete(chasing, d.id)
	}
	for i := 0; i < len(ctx.deferred); i++ {
		resolve(i)
	}

	for id := range c.states {
		if !ctx.visited[id] {
			delete(c.states, id)
		}
	}
	for id := range c.invalid {
		if !ctx.visited[id] {
			delete(c.invalid, id)
		}
	}
}

// validateCell walks the visible tree depth-first, recomputing invalid
// entries as it descends. Collapsed groups keep their own state and hide
// their children; invisible cells and their subtrees are skipped entirely
// and pruned after the walk.
func (c *Cache) validateCell(id model.CellID, parent *CellState, ctx *validation) {
	cell, ok := c.model.Cell(id)
	if !ok || !cell.Visible {
		return
	}
	if cell.Edge && c.invalid[id] && !c.terminalsReady(cell) {
		if _, queued := ctx.byID[id]; !queued {
			ctx.byID[id] = len(ctx.deferred)
			ctx.deferred = append(ctx.deferred, deferredEdge{id: id, parent: parent})
		}
		return
	}
	state := c.ensureState(id)
	if c.invalid[id] {
		c.compute(state, cell, parent)
		delete(c.invalid, id)
	}
	ctx.visited[id] = true
	if cell.Collapsed {
		return
	}
	for _, child := range cell.Children {
		c.validateCell(child, state, ctx)
	}
}

// terminalsReady reports whether every connected terminal already has a
// valid state. Detached ends have no dependency; they resolve through the
// fallback rule.
func (c *Cache) terminalsReady(edge *model.Cell) bool {
	for _, source := range []bool{true, false} {
		terminal := edge.Terminal(source)
		if terminal == model.None {
			continue
		}
		if _, ok := c.states[terminal]; !ok || c.invalid[terminal] {
			return false
		}
	}
	return true
}

func (c *Cache) ensureState(id model.CellID) *CellState {
	state, ok := c.states[id]
	if !ok {
		state = &CellState{Cell: id}
		c.states[id] = state
	}
	return state
}

func (c *Cache) compute(state *CellState, cell *model.Cell, parent *CellState) {
	var parentStyle model.Style
	if parent != nil {
		parentStyle = parent.Style
	}
	state.Style = c.resolveStyle(cell, parentStyle)
	if cell.Edge {
		c.computeEdge(state, cell, parent)
		return
	}
	state.Bounds = c.transform(cell, parent)
	state.Origin = model.Point{X: state.Bounds.X, Y: state.Bounds.Y}
	state.AbsolutePoints = nil
	state.Unrenderable = false
}

// computeEdge resolves the edge route: terminal state centers where
// available, the fallback rule otherwise, with geometry waypoints between.
// Waypoints and fallback points are in the edge's parent coordinates.
func (c *Cache) computeEdge(state *CellState, cell *model.Cell, parent *CellState) {
	var origin model.Point
	if parent != nil {
		origin = parent.Origin
	}
	source, sourceOK := c.routeEndpoint(cell, true, origin)
	target, targetOK := c.routeEndpoint(cell, false, origin)
	if !sourceOK || !targetOK {
		state.Unrenderable = true
		state.AbsolutePoints = nil
		state.Bounds = model.Rect{}
		state.Origin = origin
		return
	}

	points := make([]model.Point, 0, 2)
	points = append(points, source)
	if cell.Geometry != nil {
		for _, p := range cell.Geometry.Points {
			points = append(points, model.Point{X: origin.X + p.X, Y: origin.Y + p.Y})
		}
	}
	points = append(points, target)

	state.Unrenderable = false
	state.AbsolutePoints = points
	state.Bounds = boundsOf(points)
	state.Origin = model.Point{X: state.Bounds.X, Y: state.Bounds.Y}
}

func (c *Cache) routeEndpoint(edge *model.Cell, source bool, origin model.Point) (model.Point, bool) {
	terminal := edge.Terminal(source)
	if terminal != model.None {
		if state, ok := c.states[terminal]; ok && !c.invalid[terminal] {
			return state.Bounds.Center(), true
		}
	}
	if p, ok := c.fallback(edge, source); ok {
		return model.Point{X: origin.X + p.X, Y: origin.Y + p.Y}, true
	}
	return model.Point{}, false
}

func boundsOf(points []model.Point) model.Rect {
	if len(points) == 0 {
		return model.Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return model.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
