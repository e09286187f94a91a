package mock

import (
	"context"
	"io"

	"github.com/fwojciec/docsync"
)

var _ docsync.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of docsync.Fetcher.
type Fetcher struct {
	ProbeFn func(ctx context.Context, url string) (*docsync.StorageInfo, error)
	FetchFn func(ctx context.Context, url string, w io.Writer, progress docsync.TransferFunc) (*docsync.StorageInfo, error)
}

func (f *Fetcher) Probe(ctx context.Context, url string) (*docsync.StorageInfo, error) {
	return f.ProbeFn(ctx, url)
}

func (f *Fetcher) Fetch(ctx context.Context, url string, w io.Writer, progress docsync.TransferFunc) (*docsync.StorageInfo, error) {
	return f.FetchFn(ctx, url, w, progress)
}
