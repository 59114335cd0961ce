// Package file implements a local filesystem-backed data source. The path may
// point at a plain CSV file or at a .zip archive holding one.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"echoair/internal/datasource"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct {
	path   string
	member string
}

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The returned value is safe for concurrent use.
func NewLocal(path string) *Local { return &Local{path: path} }

// WithMember returns a copy of l that reads the named entry when the file is
// a zip archive.
func (l *Local) WithMember(member string) *Local {
	c := *l
	c.member = member
	return &c
}

// Path returns the configured filesystem path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading.
//
// Behavior:
//   - If the context is already canceled, Open returns the context error
//     without touching the filesystem.
//   - The kernel is told the file will be read sequentially.
//   - Zip archives are unwrapped to the configured member (or the sole .csv
//     entry); other files are returned as-is.
//   - Filesystem errors are wrapped with the path while still permitting
//     errors.Is checks (e.g. errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)

	rc, err := datasource.Unzip(f, l.member)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return rc, nil
}
