// Package datasource defines the byte-stream abstraction every dataset
// source implements, plus the archive helper shared by the file, HTTP and S3
// sources.
package datasource

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// Source opens a fresh stream over the dataset. Callers must close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ErrMemberNotFound is returned by Unzip when the requested CSV entry does
// not exist in the archive, or when no member was named and the archive does
// not hold exactly one .csv entry.
var ErrMemberNotFound = errors.New("datasource: archive member not found")

var zipMagic = []byte("PK\x03\x04")

// Unzip inspects the first bytes of rc. Plain streams are returned as-is
// (rc stays owned by the returned reader). Zip archives are opened and the
// entry named member is returned; an empty member selects the sole .csv
// entry. *os.File streams are read in place; any other stream is buffered in
// memory because zip needs random access.
//
// On error rc is closed.
func Unzip(rc io.ReadCloser, member string) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	head, err := br.Peek(len(zipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		_ = rc.Close()
		return nil, fmt.Errorf("datasource: sniff: %w", err)
	}
	if !bytes.Equal(head, zipMagic) {
		return readCloser{Reader: br, close: rc.Close}, nil
	}

	var (
		ra   io.ReaderAt
		size int64
	)
	if f, ok := rc.(*os.File); ok {
		st, err := f.Stat()
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("datasource: stat %s: %w", f.Name(), err)
		}
		ra, size = f, st.Size()
	} else {
		data, err := io.ReadAll(br)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("datasource: buffer archive: %w", err)
		}
		ra, size = bytes.NewReader(data), int64(len(data))
		rc = io.NopCloser(nil)
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("datasource: open archive: %w", err)
	}
	zf, err := pickMember(zr, member)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	m, err := zf.Open()
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("datasource: open member %s: %w", zf.Name, err)
	}
	return readCloser{Reader: m, close: func() error {
		return errors.Join(m.Close(), rc.Close())
	}}, nil
}

func pickMember(zr *zip.Reader, member string) (*zip.File, error) {
	if member != "" {
		for _, f := range zr.File {
			if f.Name == member || path.Base(f.Name) == member {
				return f, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrMemberNotFound, member)
	}
	var found *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".csv") {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: archive holds several .csv entries, name one", ErrMemberNotFound)
		}
		found = f
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no .csv entry", ErrMemberNotFound)
	}
	return found, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }
