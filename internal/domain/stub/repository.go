package stub

import (
	"context"
	"errors"
)

// ErrNotFound indicates a stub was not found.
var ErrNotFound = errors.New("stub not found")

// Repository is the port for loading and persisting stubs.
type Repository interface {
	// LoadAll loads all stubs from the configured root directory.
	LoadAll(ctx context.Context) ([]*Stub, error)

	// LoadByID loads a single stub by its unique ID.
	// Returns ErrNotFound if no stub with the given ID exists.
	LoadByID(ctx context.Context, id string) (*Stub, error)

	// SaveStub writes stub YAML content to disk.
	// If the stub has a SourceFile, it updates the existing file.
	// If SourceFile is empty, it creates a new file.
	SaveStub(ctx context.Context, s *Stub, yamlContent []byte) error

	// DeleteStub removes a stub from its source file.
	// For single-stub files, the file is deleted.
	// For multi-stub files, the entry is removed from the sequence.
	DeleteStub(ctx context.Context, sourceFile string, sourceIndex int) error

	// ReadSourceYAML reads the raw YAML content for a specific stub
	// from its source file.
	ReadSourceYAML(ctx context.Context, s *Stub) ([]byte, error)
}
