package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"diagramcore/internal/graph"
	"diagramcore/internal/persistence"
	"diagramcore/pkg/model"
)

func sampleSnapshot(t *testing.T) model.Snapshot {
	t.Helper()
	m := graph.NewModel()
	if _, err := m.InsertVertex(model.None, "box", &model.Geometry{Rect: model.Rect{Width: 80, Height: 40}}, model.Style{"shape": "rect"}); err != nil {
		t.Fatalf("insert vertex: %v", err)
	}
	return m.Snapshot()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	snap := sampleSnapshot(t)

	if err := store.Save(ctx, "doc-1", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded, snap) {
		t.Fatalf("loaded snapshot differs from saved")
	}
}

func TestStoredSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	snap := sampleSnapshot(t)
	if err := store.Save(ctx, "doc-1", snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the caller's copy must not reach the stored version.
	snap.Cells[snap.Root].Children = nil

	loaded, err := store.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Cells[loaded.Root].Children) == 0 {
		t.Fatalf("stored snapshot shares memory with caller")
	}

	// Same the other way: mutating a loaded copy must not poison the store.
	loaded.Cells[loaded.Root].Children = nil
	again, err := store.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(again.Cells[again.Root].Children) == 0 {
		t.Fatalf("loaded snapshot shares memory with store")
	}
}

func TestListReturnsSortedIDs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	snap := sampleSnapshot(t)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := store.Save(ctx, id, snap); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("list = %v, want %v", ids, want)
	}
}

func TestLoadAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.Load(ctx, "ghost")
	var notFound persistence.NotFoundError
	if !errors.As(err, &notFound) || notFound.ID != "ghost" {
		t.Fatalf("load missing = %v, want NotFoundError", err)
	}
	if err := store.Delete(ctx, "ghost"); !errors.As(err, &notFound) {
		t.Fatalf("delete missing = %v, want NotFoundError", err)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.Save(ctx, "doc-1", sampleSnapshot(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "doc-1"); err == nil {
		t.Fatalf("expected load to fail after delete")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
