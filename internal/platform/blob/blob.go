// Package blob abstracts the transport that delivers and receives interchange
// files. The engine only needs raw byte streams; where the bytes live is the
// transport collaborator's concern.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store provides named byte streams for batch input and output.
type Store interface {
	// Open returns a reader for an existing named stream.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create returns a writer for a new named stream, replacing any
	// previous contents.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
}

// Filesystem is a Store rooted at a local directory.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Open(_ context.Context, name string) (io.ReadCloser, error) {
	r, err := os.Open(filepath.Join(f.root, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", name, err)
	}
	return r, nil
}

func (f *Filesystem) Create(_ context.Context, name string) (io.WriteCloser, error) {
	w, err := os.Create(filepath.Join(f.root, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("create blob %s: %w", name, err)
	}
	return w, nil
}
