package docsync

import (
	"context"
	"io"
)

// TransferFunc is called with the number of bytes transferred so far.
type TransferFunc func(transferred int64)

// Fetcher retrieves dataset files from a source.
// Implementations exist per transport; cancellation goes through the context.
type Fetcher interface {
	// Probe learns size, metadata and remote query support without
	// transferring the dataset body.
	Probe(ctx context.Context, url string) (*StorageInfo, error)

	// Fetch transfers the full dataset into w and returns the info observed
	// during the transfer. progress may be nil.
	Fetch(ctx context.Context, url string, w io.Writer, progress TransferFunc) (*StorageInfo, error)
}

// Renderer converts markdown into the output markup format.
type Renderer interface {
	Render(markdown string) (string, error)
}

// URLNormalizer rewrites the URL of a referenced document when resolving
// cross-document links.
type URLNormalizer func(link *Link, datasetID string) string
