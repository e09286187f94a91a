package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fwojciec/docsync"
	"github.com/fwojciec/docsync/mock"
	docsyncslog "github.com/fwojciec/docsync/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingSearcher_Search(t *testing.T) {
	t.Parallel()

	t.Run("logs term and result count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Searcher{
			SearchFn: func(ctx context.Context, term string, opts docsync.SearchOptions) ([]*docsync.SearchItem, error) {
				return []*docsync.SearchItem{{ID: 1}, {ID: 2}}, nil
			},
		}

		items, err := docsyncslog.NewLoggingSearcher(inner, "sample", debugLogger(&buf)).
			Search(context.Background(), "sqlite", docsync.SearchOptions{})

		require.NoError(t, err)
		assert.Len(t, items, 2)
		output := buf.String()
		assert.Contains(t, output, "level=DEBUG")
		assert.Contains(t, output, "dataset=sample")
		assert.Contains(t, output, "term=sqlite")
		assert.Contains(t, output, "results=2")
		assert.Contains(t, output, "duration=")
	})

	t.Run("logs failures as warnings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Searcher{
			SearchFn: func(ctx context.Context, term string, opts docsync.SearchOptions) ([]*docsync.SearchItem, error) {
				return nil, errors.New("fts5: syntax error")
			},
		}

		_, err := docsyncslog.NewLoggingSearcher(inner, "sample", debugLogger(&buf)).
			Search(context.Background(), "\"", docsync.SearchOptions{})

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "level=WARN")
		assert.Contains(t, output, "err=\"fts5: syntax error\"")
	})
}

func TestLoggingSearcher_Doc(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.Searcher{
		DocFn: func(ctx context.Context, idOrURL string) (*docsync.Doc, error) {
			return &docsync.Doc{ID: 7, Title: "Seven"}, nil
		},
	}

	doc, err := docsyncslog.NewLoggingSearcher(inner, "sample", debugLogger(&buf)).Doc(context.Background(), "7")

	require.NoError(t, err)
	assert.Equal(t, "Seven", doc.Title)
	assert.Contains(t, buf.String(), "doc=7")
}

func TestLoggingSearcher_ListDocs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.Searcher{
		ListDocsFn: func(ctx context.Context, opts docsync.ListDocsOptions) (*docsync.DocList, error) {
			return &docsync.DocList{Docs: []*docsync.Doc{{ID: 1}}}, nil
		},
	}

	_, err := docsyncslog.NewLoggingSearcher(inner, "sample", debugLogger(&buf)).
		ListDocs(context.Background(), docsync.ListDocsOptions{SortBy: docsync.SortByEntities})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sort=entities")
	assert.Contains(t, buf.String(), "results=1")
}

func TestLoggingSearcher_Close(t *testing.T) {
	t.Parallel()

	closed := false
	inner := &mock.Searcher{
		CloseFn: func() error {
			closed = true
			return nil
		},
	}

	require.NoError(t, docsyncslog.NewLoggingSearcher(inner, "sample", slog.New(slog.DiscardHandler)).Close())
	assert.True(t, closed)
}
