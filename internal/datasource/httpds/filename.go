package httpds

import (
	"fmt"
	"net/url"
	"path"
	"regexp"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces sequences of non-alphanumeric characters with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// CacheFileName derives a stable, filesystem-safe cache file name for a
// download URL: the cleaned base name of the URL path (if any) followed by
// the xxh3 digest of the full URL, keeping the original extension so
// archives are still recognizable on disk.
//
//	https://echo.epa.gov/files/echo_air.zip?v=2 -> echo_air-1f0c...e3.zip
func CacheFileName(rawURL string) string {
	sum := fmt.Sprintf("%016x", xxh3.HashString(rawURL))

	u, err := url.Parse(rawURL)
	if err != nil {
		return sum
	}
	base := path.Base(u.Path)
	ext := path.Ext(base)
	stem := filenameCleaner.ReplaceAllString(base[:len(base)-len(ext)], "_")
	ext = filenameCleaner.ReplaceAllString(ext, "")
	if stem == "" || stem == "_" {
		stem = ""
	}

	name := sum
	if stem != "" {
		name = stem + "-" + sum
	}
	if ext != "" {
		name += "." + ext
	}
	return name
}
