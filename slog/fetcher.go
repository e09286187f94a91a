// Package slog provides logging decorators for docsync services.
package slog

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/docsync"
)

// Ensure LoggingFetcher implements docsync.Fetcher.
var _ docsync.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher and logs every probe and transfer.
type LoggingFetcher struct {
	next   docsync.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next docsync.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

func (f *LoggingFetcher) Probe(ctx context.Context, url string) (info *docsync.StorageInfo, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", url, "duration", time.Since(begin)}
		if info != nil {
			attrs = append(attrs, "size", info.Size, "remote", info.Remote, "fingerprint", info.Fingerprint())
		}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		f.logger.Info("probe", attrs...)
	}(time.Now())

	return f.next.Probe(ctx, url)
}

func (f *LoggingFetcher) Fetch(ctx context.Context, url string, w io.Writer, progress docsync.TransferFunc) (info *docsync.StorageInfo, err error) {
	var transferred int64
	defer func(begin time.Time) {
		attrs := []any{"url", url, "bytes", transferred, "duration", time.Since(begin)}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		f.logger.Info("fetch", attrs...)
	}(time.Now())

	return f.next.Fetch(ctx, url, w, func(n int64) {
		transferred = n
		if progress != nil {
			progress(n)
		}
	})
}
