// Command diagram-bench measures engine throughput: bulk inserts, geometry
// churn with incremental revalidation, undo traversal, and snapshot cloning.
package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"diagramcore/internal/core"
	"diagramcore/internal/graph"
	"diagramcore/pkg/model"
)

const (
	vertexCount   = 2000
	moveCycles    = 200
	movesPerCycle = 25
	undoDepth     = 500
	snapshotRuns  = 50
	gridColumns   = 50
)

type BenchResult struct {
	Name     string
	Duration time.Duration
	Ops      int
	Extra    string
}

func (r BenchResult) String() string {
	if r.Ops > 0 {
		opsPerSec := float64(r.Ops) / r.Duration.Seconds()
		if r.Extra != "" {
			return fmt.Sprintf("%-36s %12v  (%d ops, %.0f ops/sec) %s", r.Name, r.Duration.Round(time.Microsecond), r.Ops, opsPerSec, r.Extra)
		}
		return fmt.Sprintf("%-36s %12v  (%d ops, %.0f ops/sec)", r.Name, r.Duration.Round(time.Microsecond), r.Ops, opsPerSec)
	}
	if r.Extra != "" {
		return fmt.Sprintf("%-36s %12v  %s", r.Name, r.Duration.Round(time.Microsecond), r.Extra)
	}
	return fmt.Sprintf("%-36s %12v", r.Name, r.Duration.Round(time.Microsecond))
}

// benchDoc carries one service instance and the vertex ids the build phase
// created, shared across the bench phases.
type benchDoc struct {
	svc    *core.Service
	verts  []model.CellID
	n      int
	cycles int
}

func newBenchDoc(n, cycles int) *benchDoc {
	return &benchDoc{
		svc:    core.NewService(core.WithHistoryLimit(1 << 16)),
		n:      n,
		cycles: cycles,
	}
}

func main() {
	fmt.Println("diagramcore benchmark")
	fmt.Println("=====================")
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
	fmt.Printf("Vertices: %d\n\n", vertexCount)

	ctx := context.Background()
	doc := newBenchDoc(vertexCount, moveCycles)

	var results []BenchResult
	runBench := func(fn func() BenchResult) {
		r := fn()
		fmt.Println(r)
		results = append(results, r)
	}

	fmt.Println("Build:")
	runBench(func() BenchResult { return doc.insertVertices(ctx) })
	runBench(func() BenchResult { return doc.insertEdges(ctx) })
	runBench(func() BenchResult { return doc.fullValidate(ctx) })

	fmt.Println("\nEdit cycles:")
	runBench(func() BenchResult { return doc.moveValidateCycles(ctx) })
	runBench(func() BenchResult { return doc.styleChurn(ctx) })

	fmt.Println("\nHistory:")
	runBench(func() BenchResult { return doc.undoRedo(ctx) })

	fmt.Println("\nSnapshots:")
	runBench(func() BenchResult { return doc.snapshot() })

	fmt.Println("\nSUMMARY")
	for _, r := range results {
		fmt.Println(r)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("\nHeap in use: %d MB\n", m.HeapSys/(1024*1024))
	fmt.Printf("Total allocations: %d MB\n", m.TotalAlloc/(1024*1024))
}

// insertVertices creates the vertex grid in a single transaction.
func (d *benchDoc) insertVertices(ctx context.Context) BenchResult {
	name := fmt.Sprintf("Insert vertices (x%d, one batch)", d.n)
	layer := d.svc.DefaultParent()
	start := time.Now()

	err := d.svc.Batch(ctx, func(m *graph.Model) error {
		for i := 0; i < d.n; i++ {
			id, err := m.InsertVertex(layer, fmt.Sprintf("node-%d", i), vertexGeometry(i, 0), nil)
			if err != nil {
				return err
			}
			d.verts = append(d.verts, id)
		}
		return nil
	})
	if err != nil {
		return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
	}
	return BenchResult{Name: name, Duration: time.Since(start), Ops: d.n}
}

// insertEdges chains consecutive vertices in a single transaction.
func (d *benchDoc) insertEdges(ctx context.Context) BenchResult {
	name := fmt.Sprintf("Insert edges (x%d, one batch)", len(d.verts)-1)
	layer := d.svc.DefaultParent()
	start := time.Now()

	err := d.svc.Batch(ctx, func(m *graph.Model) error {
		for i := 0; i+1 < len(d.verts); i++ {
			if _, err := m.InsertEdge(layer, nil, nil, d.verts[i], d.verts[i+1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
	}
	return BenchResult{Name: name, Duration: time.Since(start), Ops: len(d.verts) - 1}
}

// fullValidate computes every render state from a cold cache.
func (d *benchDoc) fullValidate(ctx context.Context) BenchResult {
	name := "Full validate (cold cache)"
	start := time.Now()
	if err := d.svc.Validate(ctx); err != nil {
		return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
	}
	return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("%d cells", d.svc.CellCount())}
}

// moveValidateCycles runs edit/revalidate rounds: a handful of geometry
// updates followed by an incremental validate.
func (d *benchDoc) moveValidateCycles(ctx context.Context) BenchResult {
	name := fmt.Sprintf("Move+validate cycles (x%d)", d.cycles)
	ops := 0
	start := time.Now()

	for c := 1; c <= d.cycles; c++ {
		for k := 0; k < movesPerCycle; k++ {
			idx := (c*movesPerCycle + k*7) % len(d.verts)
			if err := d.svc.SetGeometry(ctx, d.verts[idx], vertexGeometry(idx, c)); err != nil {
				return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
			}
			ops++
		}
		if err := d.svc.Validate(ctx); err != nil {
			return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
		}
	}
	return BenchResult{Name: name, Duration: time.Since(start), Ops: ops}
}

// styleChurn restyles every vertex in one transaction and revalidates.
func (d *benchDoc) styleChurn(ctx context.Context) BenchResult {
	name := fmt.Sprintf("Restyle all vertices (x%d)", len(d.verts))
	start := time.Now()

	err := d.svc.Batch(ctx, func(m *graph.Model) error {
		for i, id := range d.verts {
			fill := "#dae8fc"
			if i%2 == 1 {
				fill = "#d5e8d4"
			}
			if err := m.SetStyle(id, model.Style{"fill": fill}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
	}
	if err := d.svc.Validate(ctx); err != nil {
		return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
	}
	return BenchResult{Name: name, Duration: time.Since(start), Ops: len(d.verts)}
}

// undoRedo unwinds the most recent history entries and replays them.
func (d *benchDoc) undoRedo(ctx context.Context) BenchResult {
	depth := undoDepth
	if h := d.svc.HistoryLength(); h < depth {
		depth = h
	}
	name := fmt.Sprintf("Undo/redo (depth %d)", depth)
	ops := 0
	start := time.Now()

	for i := 0; i < depth && d.svc.CanUndo(); i++ {
		if err := d.svc.Undo(ctx); err != nil {
			return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
		}
		ops++
	}
	for i := 0; i < depth && d.svc.CanRedo(); i++ {
		if err := d.svc.Redo(ctx); err != nil {
			return BenchResult{Name: name, Duration: time.Since(start), Extra: fmt.Sprintf("ERROR: %v", err)}
		}
		ops++
	}
	return BenchResult{Name: name, Duration: time.Since(start), Ops: ops}
}

// snapshot clones the whole document repeatedly.
func (d *benchDoc) snapshot() BenchResult {
	name := fmt.Sprintf("Snapshot clone (x%d)", snapshotRuns)
	cells := 0
	start := time.Now()

	for i := 0; i < snapshotRuns; i++ {
		snap := d.svc.Snapshot()
		cells = snap.Len()
	}
	return BenchResult{Name: name, Duration: time.Since(start), Ops: snapshotRuns, Extra: fmt.Sprintf("%d cells each", cells)}
}

func vertexGeometry(i, generation int) *model.Geometry {
	col := i % gridColumns
	row := i / gridColumns
	return &model.Geometry{Rect: model.Rect{
		X:      float64(col*160 + generation),
		Y:      float64(row*100 + generation),
		Width:  120,
		Height: 60,
	}}
}
