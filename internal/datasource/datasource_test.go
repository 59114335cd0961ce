package datasource

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// TestUnzip covers plain passthrough, named and implicit members, and the
// member-not-found errors, for both in-memory and *os.File streams.
func TestUnzip(t *testing.T) {
	t.Parallel()

	single := zipBytes(t, map[string]string{"data/echo.csv": "A,B\n1,2\n", "README.txt": "x"})
	double := zipBytes(t, map[string]string{"a.csv": "A\n", "b.csv": "B\n"})

	cases := []struct {
		name      string
		payload   []byte
		member    string
		onDisk    bool
		want      string
		wantErrIs error
	}{
		{name: "plain_passthrough", payload: []byte("A,B\n1,2\n"), want: "A,B\n1,2\n"},
		{name: "empty_stream", payload: nil, want: ""},
		{name: "implicit_single_csv", payload: single, want: "A,B\n1,2\n"},
		{name: "named_by_base", payload: single, member: "echo.csv", want: "A,B\n1,2\n"},
		{name: "named_by_full_path_on_disk", payload: single, member: "data/echo.csv", onDisk: true, want: "A,B\n1,2\n"},
		{name: "missing_member", payload: single, member: "other.csv", wantErrIs: ErrMemberNotFound},
		{name: "ambiguous", payload: double, wantErrIs: ErrMemberNotFound},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			var rc io.ReadCloser = io.NopCloser(bytes.NewReader(c.payload))
			if c.onDisk {
				p := filepath.Join(t.TempDir(), "echo.zip")
				if err := os.WriteFile(p, c.payload, 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
				f, err := os.Open(p)
				if err != nil {
					t.Fatalf("open: %v", err)
				}
				rc = f
			}

			out, err := Unzip(rc, c.member)
			if c.wantErrIs != nil {
				if !errors.Is(err, c.wantErrIs) {
					t.Fatalf("Unzip err = %v, want %v", err, c.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unzip: %v", err)
			}
			defer out.Close()
			got, err := io.ReadAll(out)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != c.want {
				t.Fatalf("content = %q, want %q", got, c.want)
			}
		})
	}
}
