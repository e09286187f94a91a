package mock

import (
	"context"

	"github.com/fwojciec/docsync"
)

var _ docsync.Searcher = (*Searcher)(nil)

// Searcher is a mock implementation of docsync.Searcher.
// Open and Close succeed when their functions are unset.
type Searcher struct {
	OpenFn        func(ctx context.Context) error
	CloseFn       func() error
	MetadataFn    func(ctx context.Context) (map[string]string, error)
	EntitiesFn    func(ctx context.Context, limit int, docIDs []int64) ([]*docsync.Entity, error)
	TopEntitiesFn func(ctx context.Context) ([]*docsync.Entity, error)
	TOCFn         func(ctx context.Context) ([]*docsync.TOCItem, error)
	DocFn         func(ctx context.Context, idOrURL string) (*docsync.Doc, error)
	ListDocsFn    func(ctx context.Context, opts docsync.ListDocsOptions) (*docsync.DocList, error)
	SearchFn      func(ctx context.Context, term string, opts docsync.SearchOptions) ([]*docsync.SearchItem, error)
	SelectAllFn   func(ctx context.Context, query string, args ...any) ([]docsync.Row, error)
	SelectOneFn   func(ctx context.Context, query string, args ...any) (docsync.Row, error)
}

func (s *Searcher) Open(ctx context.Context) error {
	if s.OpenFn == nil {
		return nil
	}
	return s.OpenFn(ctx)
}

func (s *Searcher) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

func (s *Searcher) Metadata(ctx context.Context) (map[string]string, error) {
	return s.MetadataFn(ctx)
}

func (s *Searcher) Entities(ctx context.Context, limit int, docIDs []int64) ([]*docsync.Entity, error) {
	return s.EntitiesFn(ctx, limit, docIDs)
}

func (s *Searcher) TopEntities(ctx context.Context) ([]*docsync.Entity, error) {
	return s.TopEntitiesFn(ctx)
}

func (s *Searcher) TOC(ctx context.Context) ([]*docsync.TOCItem, error) {
	return s.TOCFn(ctx)
}

func (s *Searcher) Doc(ctx context.Context, idOrURL string) (*docsync.Doc, error) {
	return s.DocFn(ctx, idOrURL)
}

func (s *Searcher) ListDocs(ctx context.Context, opts docsync.ListDocsOptions) (*docsync.DocList, error) {
	return s.ListDocsFn(ctx, opts)
}

func (s *Searcher) Search(ctx context.Context, term string, opts docsync.SearchOptions) ([]*docsync.SearchItem, error) {
	return s.SearchFn(ctx, term, opts)
}

func (s *Searcher) SelectAll(ctx context.Context, query string, args ...any) ([]docsync.Row, error) {
	return s.SelectAllFn(ctx, query, args...)
}

func (s *Searcher) SelectOne(ctx context.Context, query string, args ...any) (docsync.Row, error) {
	return s.SelectOneFn(ctx, query, args...)
}
