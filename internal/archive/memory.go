package archive

import (
	memorystore "diagramcore/internal/infra/archive/memory"
)

// NewMemory returns an in-memory archive Store suitable for tests.
func NewMemory() Store { return memorystore.New() }
