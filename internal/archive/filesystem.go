package archive

import (
	"diagramcore/internal/infra/archive/fs"
)

// NewFilesystem constructs a filesystem-backed archive rooted at the provided
// path. Returns the Store interface so call sites do not depend on the
// concrete implementation.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
