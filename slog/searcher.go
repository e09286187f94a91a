package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docsync"
)

// Ensure LoggingSearcher implements docsync.Searcher.
var _ docsync.Searcher = (*LoggingSearcher)(nil)

// LoggingSearcher wraps a Searcher and logs every query at debug level.
type LoggingSearcher struct {
	next    docsync.Searcher
	dataset string
	logger  *slog.Logger
}

// NewLoggingSearcher creates a new LoggingSearcher for the named dataset.
func NewLoggingSearcher(next docsync.Searcher, dataset string, logger *slog.Logger) *LoggingSearcher {
	return &LoggingSearcher{next: next, dataset: dataset, logger: logger}
}

func (s *LoggingSearcher) log(op string, begin time.Time, err error, attrs ...any) {
	attrs = append([]any{"dataset", s.dataset}, attrs...)
	attrs = append(attrs, "duration", time.Since(begin))
	if err != nil {
		attrs = append(attrs, "err", err)
		s.logger.Warn(op, attrs...)
		return
	}
	s.logger.Debug(op, attrs...)
}

func (s *LoggingSearcher) Open(ctx context.Context) (err error) {
	defer func(begin time.Time) { s.log("open", begin, err) }(time.Now())
	return s.next.Open(ctx)
}

func (s *LoggingSearcher) Close() (err error) {
	defer func(begin time.Time) { s.log("close", begin, err) }(time.Now())
	return s.next.Close()
}

func (s *LoggingSearcher) Metadata(ctx context.Context) (md map[string]string, err error) {
	defer func(begin time.Time) { s.log("metadata", begin, err, "keys", len(md)) }(time.Now())
	return s.next.Metadata(ctx)
}

func (s *LoggingSearcher) Entities(ctx context.Context, limit int, docIDs []int64) (entities []*docsync.Entity, err error) {
	defer func(begin time.Time) {
		s.log("entities", begin, err, "limit", limit, "docs", len(docIDs), "results", len(entities))
	}(time.Now())
	return s.next.Entities(ctx, limit, docIDs)
}

func (s *LoggingSearcher) TopEntities(ctx context.Context) (entities []*docsync.Entity, err error) {
	defer func(begin time.Time) { s.log("top entities", begin, err, "results", len(entities)) }(time.Now())
	return s.next.TopEntities(ctx)
}

func (s *LoggingSearcher) TOC(ctx context.Context) (items []*docsync.TOCItem, err error) {
	defer func(begin time.Time) { s.log("toc", begin, err, "results", len(items)) }(time.Now())
	return s.next.TOC(ctx)
}

func (s *LoggingSearcher) Doc(ctx context.Context, idOrURL string) (doc *docsync.Doc, err error) {
	defer func(begin time.Time) { s.log("doc", begin, err, "doc", idOrURL) }(time.Now())
	return s.next.Doc(ctx, idOrURL)
}

func (s *LoggingSearcher) ListDocs(ctx context.Context, opts docsync.ListDocsOptions) (list *docsync.DocList, err error) {
	defer func(begin time.Time) {
		n := 0
		if list != nil {
			n = len(list.Docs)
		}
		s.log("list docs", begin, err, "sort", string(opts.SortBy), "results", n)
	}(time.Now())
	return s.next.ListDocs(ctx, opts)
}

func (s *LoggingSearcher) Search(ctx context.Context, term string, opts docsync.SearchOptions) (items []*docsync.SearchItem, err error) {
	defer func(begin time.Time) { s.log("search", begin, err, "term", term, "results", len(items)) }(time.Now())
	return s.next.Search(ctx, term, opts)
}

func (s *LoggingSearcher) SelectAll(ctx context.Context, query string, args ...any) (rows []docsync.Row, err error) {
	defer func(begin time.Time) { s.log("select all", begin, err, "rows", len(rows)) }(time.Now())
	return s.next.SelectAll(ctx, query, args...)
}

func (s *LoggingSearcher) SelectOne(ctx context.Context, query string, args ...any) (row docsync.Row, err error) {
	defer func(begin time.Time) { s.log("select one", begin, err) }(time.Now())
	return s.next.SelectOne(ctx, query, args...)
}
