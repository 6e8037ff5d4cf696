// Package persistence defines the document store surface shared by the
// service layer and the storage backends under internal/infra/persistence.
// Backend selection lives with the service wiring so this package stays
// import-cycle free for implementations.
package persistence

import (
	"context"
	"fmt"

	"diagramcore/pkg/model"
)

// Driver identifies a concrete document store implementation.
type Driver string

const (
	// DriverMemory keeps documents in process memory (tests / ephemeral).
	DriverMemory Driver = "memory"
	// DriverSQLite stores documents in an embedded sqlite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores documents in a PostgreSQL server.
	DriverPostgres Driver = "postgres"
)

// NotFoundError reports a document id with nothing stored under it.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("document %q not found", e.ID)
}

// DocumentStore persists document snapshots by id. Save overwrites any
// existing snapshot under the same id. Implementations keep deep copies, so
// later mutations of a saved or loaded snapshot never leak through.
type DocumentStore interface {
	Save(ctx context.Context, id string, snapshot model.Snapshot) error
	Load(ctx context.Context, id string) (model.Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
