// Package docsync keeps a locally cached, periodically refreshed replica of a
// remote document corpus and answers full-text search and document queries
// against it. When the source advertises server-side query support, queries
// are delegated to the source instead of a local copy.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, http/, goldmark/).
package docsync

import (
	"net/url"
	"path"
	"strings"
)

// DatasetExt is the file extension stripped from a source path to derive
// the dataset ID.
const DatasetExt = ".db"

// DatasetID derives the dataset identifier from a source URL: the basename
// of the URL path without the DatasetExt suffix.
func DatasetID(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, DatasetExt)
}
