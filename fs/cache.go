// Package fs provides the on-disk side of dataset caching: cache path
// derivation, the info sidecar, and atomic downloads.
package fs

import (
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/fwojciec/docsync"
)

// Suffixes of the files kept next to a cached dataset.
const (
	InfoSuffix = ".info"
	TempSuffix = ".tmp"
	LockSuffix = ".lock"
)

// CachePath derives the cache location of a source below root:
// <root>/<scheme>/<hostname>/<url path>.
// Example: https://example.com/data/docs.db → <root>/https/example.com/data/docs.db
func CachePath(root, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", docsync.Errorf(docsync.EINVALID, "invalid source URL %q: %v", rawURL, err)
	}

	// Resolve dot segments against "/" so the result cannot leave the host directory.
	p := path.Clean("/" + u.Path)
	if p == "/" {
		return "", docsync.Errorf(docsync.EINVALID, "source URL %q has no file path", rawURL)
	}

	return filepath.Abs(filepath.Join(root, u.Scheme, u.Hostname(), filepath.FromSlash(p)))
}

// DefaultCachePath places the dataset in the system temp directory under the
// basename of the source path. Used when no cache root is configured.
func DefaultCachePath(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return filepath.Join(os.TempDir(), path.Base(p))
}

// InfoPath returns the sidecar path for a cached dataset.
func InfoPath(p string) string { return p + InfoSuffix }

// TempPath returns the in-progress download path for a cached dataset.
func TempPath(p string) string { return p + TempSuffix }

// Remove deletes a cached dataset with its sidecar and any stray download.
// Errors are ignored; missing files are expected.
func Remove(p string) {
	for _, name := range []string{p, InfoPath(p), TempPath(p), p + LockSuffix} {
		_ = os.Remove(name)
	}
}
