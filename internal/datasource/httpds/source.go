package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"echoair/internal/datasource"
)

// Source downloads the dataset over HTTP. The body may be a plain CSV or a
// zip archive; archives are unwrapped to Member.
//
// When CacheDir is set the first successful download is stored there under
// CacheFileName(URL) and later opens read the cached copy without touching
// the network.
type Source struct {
	Client   *Client
	URL      string
	Member   string
	CacheDir string
}

// NewSource returns a Source fetching url with c.
func NewSource(c *Client, url string) *Source {
	return &Source{Client: c, URL: url}
}

// CachePath returns where the download is cached, or "" when caching is off.
func (s *Source) CachePath() string {
	if s.CacheDir == "" {
		return ""
	}
	return filepath.Join(s.CacheDir, CacheFileName(s.URL))
}

// Open implements datasource.Source.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if p := s.CachePath(); p != "" {
		f, err := os.Open(p)
		if err == nil {
			return datasource.Unzip(f, s.Member)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("httpds: open cache %s: %w", p, err)
		}
	}

	resp, err := s.Client.Get(ctx, s.URL)
	if err != nil {
		return nil, err
	}

	if p := s.CachePath(); p != "" {
		err := writeCache(p, resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("httpds: reopen cache %s: %w", p, err)
		}
		return datasource.Unzip(f, s.Member)
	}
	return datasource.Unzip(resp.Body, s.Member)
}

// writeCache streams r into path via a temp file in the same directory so a
// partial download never becomes visible under the final name.
func writeCache(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("httpds: cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("httpds: cache temp: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("httpds: download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("httpds: cache close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("httpds: cache rename: %w", err)
	}
	return nil
}

var _ datasource.Source = (*Source)(nil)
