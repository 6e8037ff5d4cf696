// Command diagram-demo drives the diagram engine end to end: it assembles a
// small flowchart, batches edits into one history entry, walks the undo
// history, and prints the derived render states. With -config it also saves
// and reloads the document through the configured persistence backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"diagramcore/internal/config"
	"diagramcore/internal/core"
	"diagramcore/internal/graph"
	"diagramcore/pkg/model"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("diagram-demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath string
	fs.StringVar(&configPath, "config", "", "path to YAML config enabling persistence")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := run(configPath, stdout, stderr); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "diagram-demo: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}

func run(configPath string, stdout, stderr io.Writer) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	opts := []core.Option{
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithHistoryLimit(cfg.HistoryLimit),
	}
	if configPath != "" {
		store, err := core.OpenDocumentStoreFromConfig(ctx, cfg.Persistence)
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, core.WithDocumentStore(store, cfg.Persistence.DocumentID))
		if cfg.Persistence.Autosave {
			opts = append(opts, core.WithAutosave())
		}
	}
	svc := core.NewService(opts...)
	layer := svc.DefaultParent()

	start, err := svc.InsertVertex(ctx, layer, "Start", geom(40, 40, 120, 60), model.Style{"shape": "ellipse", "fill": "#d5e8d4"})
	if err != nil {
		return err
	}

	// The decision diamond, both branches, and their edges commit as one
	// history entry.
	var decision, ship, rework model.CellID
	err = svc.Batch(ctx, func(m *graph.Model) error {
		var err error
		decision, err = m.InsertVertex(layer, "Tests pass?", geom(40, 160, 120, 80), model.Style{"shape": "rhombus", "fill": "#fff2cc"})
		if err != nil {
			return err
		}
		ship, err = m.InsertVertex(layer, "Ship it", geom(220, 170, 120, 60), nil)
		if err != nil {
			return err
		}
		rework, err = m.InsertVertex(layer, "Fix and retry", geom(-140, 170, 120, 60), nil)
		if err != nil {
			return err
		}
		if _, err := m.InsertEdge(layer, nil, nil, start, decision); err != nil {
			return err
		}
		if _, err := m.InsertEdge(layer, "yes", model.Style{"dashed": "0"}, decision, ship); err != nil {
			return err
		}
		_, err = m.InsertEdge(layer, "no", model.Style{"dashed": "1"}, decision, rework)
		return err
	})
	if err != nil {
		return err
	}

	if err := svc.Validate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "flowchart: %d cells, history %d\n", svc.CellCount(), svc.HistoryLength())
	printStates(stdout, svc, layer)

	if err := svc.Undo(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "after undo: %d cells (can redo: %v)\n", svc.CellCount(), svc.CanRedo())
	if err := svc.Redo(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "after redo: %d cells\n", svc.CellCount())

	if err := svc.SetGeometry(ctx, ship, geom(260, 170, 120, 60)); err != nil {
		return err
	}
	if err := svc.SetStyle(ctx, ship, model.Style{"fill": "#dae8fc", "rounded": "1"}); err != nil {
		return err
	}
	if err := svc.SetValue(ctx, rework, "Fix, then retry"); err != nil {
		return err
	}
	if err := svc.Validate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "after edits:")
	printStates(stdout, svc, layer)

	if configPath == "" {
		return nil
	}

	// Round-trip through the store: save, damage the document, reload.
	if err := svc.SaveDocument(ctx); err != nil {
		return err
	}
	if err := svc.RemoveCell(ctx, rework); err != nil {
		return err
	}
	if err := svc.LoadDocument(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "document %q saved and reloaded: %d cells\n", svc.DocumentID(), svc.CellCount())
	return nil
}

func printStates(out io.Writer, svc *core.Service, layer model.CellID) {
	for _, id := range svc.Children(layer) {
		cell, ok := svc.Cell(id)
		if !ok {
			continue
		}
		state := svc.CellState(id)
		if state == nil {
			continue
		}
		if cell.Edge {
			fmt.Fprintf(out, "  edge   %-3s %-16q route=%v\n", id, labelFor(cell), state.AbsolutePoints)
			continue
		}
		b := state.Bounds
		fmt.Fprintf(out, "  vertex %-3s %-16q at (%g,%g) %gx%g style=%v\n", id, labelFor(cell), b.X, b.Y, b.Width, b.Height, state.Style)
	}
}

func labelFor(cell *model.Cell) string {
	if cell.Value == nil {
		return ""
	}
	return fmt.Sprintf("%v", cell.Value)
}

func geom(x, y, w, h float64) *model.Geometry {
	return &model.Geometry{Rect: model.Rect{X: x, Y: y, Width: w, Height: h}}
}
