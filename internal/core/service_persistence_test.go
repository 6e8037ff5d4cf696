package core

import (
	"context"
	"errors"
	"testing"

	"diagramcore/internal/graph"
	"diagramcore/internal/infra/persistence/memory"
	"diagramcore/internal/persistence"
	"diagramcore/pkg/model"
)

type countingStore struct {
	persistence.DocumentStore
	saves int
}

func (c *countingStore) Save(ctx context.Context, id string, snapshot model.Snapshot) error {
	c.saves++
	return c.DocumentStore.Save(ctx, id, snapshot)
}

type failingStore struct {
	persistence.DocumentStore
}

func (failingStore) Save(context.Context, string, model.Snapshot) error {
	return errors.New("disk full")
}

func TestSaveAndLoadDocumentRoundTrip(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(WithDocumentStore(store, "doc-1"))
	ctx := context.Background()

	v := insertTestVertex(t, svc, model.None, 10, 10, 20, 20)
	if err := svc.SaveDocument(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := svc.RemoveCell(ctx, v); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := svc.Cell(v); ok {
		t.Fatalf("expected vertex removed before load")
	}

	if err := svc.LoadDocument(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := svc.Cell(v); !ok {
		t.Fatalf("expected vertex restored by load")
	}
	if svc.CanUndo() {
		t.Fatalf("expected history cleared after load")
	}
	if svc.DocumentID() != "doc-1" {
		t.Fatalf("document id = %q", svc.DocumentID())
	}
}

func TestDocumentOperationsRequireStore(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	if err := svc.SaveDocument(ctx); !errors.Is(err, ErrNoStore) {
		t.Fatalf("save error = %v, want ErrNoStore", err)
	}
	if err := svc.LoadDocument(ctx); !errors.Is(err, ErrNoStore) {
		t.Fatalf("load error = %v, want ErrNoStore", err)
	}
}

func TestLoadMissingDocumentFails(t *testing.T) {
	svc := NewService(WithDocumentStore(memory.NewStore(), "absent"))

	err := svc.LoadDocument(context.Background())
	var notFound persistence.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAutosavePersistsMutations(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(WithDocumentStore(store, "auto"), WithAutosave())

	v := insertTestVertex(t, svc, model.None, 0, 0, 10, 10)

	snapshot, err := store.Load(context.Background(), "auto")
	if err != nil {
		t.Fatalf("expected autosaved document: %v", err)
	}
	m := graph.NewModel()
	if err := m.SetRoot(snapshot); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if !m.Contains(v) {
		t.Fatalf("autosaved document missing %q", v)
	}
}

func TestAutosaveSkipsReadOnlyOperations(t *testing.T) {
	store := &countingStore{DocumentStore: memory.NewStore()}
	svc := NewService(WithDocumentStore(store, "count"), WithAutosave())
	ctx := context.Background()

	insertTestVertex(t, svc, model.None, 0, 0, 10, 10)
	if store.saves != 1 {
		t.Fatalf("saves after insert = %d, want 1", store.saves)
	}

	if err := svc.Validate(ctx); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("validate must not autosave, saves = %d", store.saves)
	}

	if err := svc.SaveDocument(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.saves != 2 {
		t.Fatalf("explicit save must not autosave on top, saves = %d", store.saves)
	}

	if err := svc.LoadDocument(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.saves != 2 {
		t.Fatalf("load must not autosave, saves = %d", store.saves)
	}
}

func TestAutosaveFailureLogsWarning(t *testing.T) {
	log := &captureLogger{}
	store := failingStore{DocumentStore: memory.NewStore()}
	svc := NewService(WithDocumentStore(store, "flaky"), WithAutosave(), WithLogger(log))

	// The edit itself succeeds even though persisting it does not.
	if _, err := svc.InsertVertex(context.Background(), model.None, nil, nil, nil); err != nil {
		t.Fatalf("insert vertex: %v", err)
	}
	if !log.hasPrefix("w:") {
		t.Fatalf("expected warning log for failed autosave, got %v", log.calls)
	}
}
