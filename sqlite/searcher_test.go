package sqlite_test

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/docsync"
	"github.com/fwojciec/docsync/mock"
	"github.com/fwojciec/docsync/sqlite"
	"github.com/fwojciec/docsync/sqlite/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSampleSearcher(t *testing.T, opts ...sqlite.Option) *sqlite.Searcher {
	t.Helper()
	s := sqlite.NewSearcher(sqlitetest.CreateSample(t, "sample.db"), nil, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func entityNames(entities []*docsync.Entity) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return names
}

func docIDs(docs []*docsync.Doc) []int64 {
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

func TestSearcher_Metadata(t *testing.T) {
	t.Parallel()

	s := newSampleSearcher(t)

	md, err := s.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sample", md["title"])
	assert.Equal(t, "1h", md["updateInterval"])
	assert.Len(t, md, 3)
}

func TestSearcher_Entities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSampleSearcher(t)

	t.Run("orders by count then id", func(t *testing.T) {
		t.Parallel()

		entities, err := s.Entities(ctx, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"SQLite", "Go", "Markdown"}, entityNames(entities))
		assert.Equal(t, 2, entities[0].Count)
		assert.Equal(t, int64(1), entities[0].ID)
	})

	t.Run("respects limit", func(t *testing.T) {
		t.Parallel()

		entities, err := s.Entities(ctx, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"SQLite"}, entityNames(entities))
	})

	t.Run("scopes to documents", func(t *testing.T) {
		t.Parallel()

		entities, err := s.Entities(ctx, 10, []int64{2})
		require.NoError(t, err)
		assert.Equal(t, []string{"SQLite", "Markdown"}, entityNames(entities))
		assert.Equal(t, 1, entities[0].Count)
	})

	t.Run("empty document set yields nothing", func(t *testing.T) {
		t.Parallel()

		entities, err := s.Entities(ctx, 10, []int64{})
		require.NoError(t, err)
		assert.Empty(t, entities)
	})
}

func TestSearcher_TopEntities(t *testing.T) {
	t.Parallel()

	s := newSampleSearcher(t)

	entities, err := s.TopEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SQLite"}, entityNames(entities))
}

func TestSearcher_TOC(t *testing.T) {
	t.Parallel()

	s := newSampleSearcher(t)

	toc, err := s.TOC(context.Background())
	require.NoError(t, err)
	require.Len(t, toc, 2)

	assert.Equal(t, int64(1), toc[0].ID)
	assert.Equal(t, "Introduction", toc[0].Title)
	require.Len(t, toc[0].Sections, 2)
	assert.Equal(t, "Intro", toc[0].Sections[0].Title)
	assert.Equal(t, "!1", toc[0].Sections[0].Anchor)
	require.NotNil(t, toc[0].Sections[0].Level)
	assert.Equal(t, 1, *toc[0].Sections[0].Level)
	assert.Equal(t, "Install", toc[0].Sections[1].Title)
	assert.Empty(t, toc[0].Sections[1].Anchor)
	assert.Nil(t, toc[0].Sections[1].Level)

	// Untitled section 4 is left out.
	assert.Equal(t, "Guide", toc[1].Title)
	require.Len(t, toc[1].Sections, 1)
	assert.Equal(t, "!3", toc[1].Sections[0].Anchor)
}

func TestSearcher_Doc(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("assembles contents from sections", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		doc, err := s.Doc(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Introduction", doc.Title)
		assert.Equal(t, "https://example.com/intro", doc.URL)
		assert.Equal(t, "CC-BY", doc.Metadata["license"])
		require.NotNil(t, doc.PublishedAt)
		assert.True(t, doc.PublishedAt.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
		assert.False(t, doc.Binary)

		want := "# Intro <span id=\"!1\"></span>\n\n" +
			"Welcome to the sample dataset. See https://example.com/guide for the guide.\n\n" +
			"### Install\n\n" +
			"Install the sqlite tool." +
			"\n\nSource: https://example.com/intro (CC-BY)"
		assert.Equal(t, want, doc.Contents)
	})

	t.Run("joins image document", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		doc, err := s.Doc(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, doc.Image)
		assert.Equal(t, int64(4), doc.Image.ID)
		assert.Equal(t, "https://example.com/logo.png", doc.Image.URL)
		assert.Equal(t, "image/png", doc.Image.Type)
		assert.Equal(t, "abc", doc.Image.CRC)
		assert.True(t, doc.Image.Crawl)
		require.NotNil(t, doc.Image.Size)
		assert.Equal(t, int64(1234), *doc.Image.Size)
	})

	t.Run("looks up by URL and keeps stored contents", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		doc, err := s.Doc(ctx, "https://example.com/guide")
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.ID)
		assert.Equal(t, "<p>Pre-rendered guide</p>\n\nSource: https://example.com/guide ()", doc.Contents)
		assert.Nil(t, doc.Image)
	})

	t.Run("returns binary contents without footer", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		doc, err := s.Doc(ctx, "3")
		require.NoError(t, err)
		assert.True(t, doc.Binary)
		assert.Equal(t, string([]byte{0, 1, 2}), doc.Contents)
		assert.Equal(t, "application/octet-stream", doc.Type)
	})

	t.Run("returns not found for unknown document", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		_, err := s.Doc(ctx, "99")
		assert.Equal(t, docsync.ENOTFOUND, docsync.ErrorCode(err))
	})

	t.Run("normalizes link URLs", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t,
			sqlite.WithDatasetID("sample"),
			sqlite.WithNormalizer(func(link *docsync.Link, datasetID string) string {
				return "/" + datasetID + "/" + strconv.FormatInt(link.ID, 10)
			}),
		)

		doc, err := s.Doc(ctx, "1")
		require.NoError(t, err)
		assert.Contains(t, doc.Contents, "See /sample/2 for the guide.")
	})

	t.Run("renders assembled contents", func(t *testing.T) {
		t.Parallel()

		var rendered string
		renderer := &mock.Renderer{
			RenderFn: func(markdown string) (string, error) {
				rendered = markdown
				return "<html>", nil
			},
		}
		s := sqlite.NewSearcher(sqlitetest.CreateSample(t, "sample.db"), renderer)
		defer s.Close()

		doc, err := s.Doc(ctx, "1")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(doc.Contents, "<html>"))
		assert.True(t, strings.HasPrefix(rendered, "# Intro"))
	})
}

func TestSearcher_ListDocs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSampleSearcher(t)

	t.Run("lists titled documents by boost", func(t *testing.T) {
		t.Parallel()

		list, err := s.ListDocs(ctx, docsync.ListDocsOptions{})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, docIDs(list.Docs))
		assert.Equal(t, []string{"SQLite", "Go", "Markdown"}, entityNames(list.Entities))
		require.NotNil(t, list.Docs[1].Image)
		assert.Equal(t, "https://example.com/logo.png", list.Docs[1].Image.URL)
	})

	t.Run("filters by entity", func(t *testing.T) {
		t.Parallel()

		list, err := s.ListDocs(ctx, docsync.ListDocsOptions{EntityIDs: []int64{2}})
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, docIDs(list.Docs))
		assert.Equal(t, []string{"SQLite", "Go"}, entityNames(list.Entities))
	})

	t.Run("sorts by top entities", func(t *testing.T) {
		t.Parallel()

		list, err := s.ListDocs(ctx, docsync.ListDocsOptions{SortBy: docsync.SortByEntities})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, docIDs(list.Docs))
		assert.Equal(t, []string{"SQLite"}, entityNames(list.Entities))
	})

	t.Run("returns top entities", func(t *testing.T) {
		t.Parallel()

		list, err := s.ListDocs(ctx, docsync.ListDocsOptions{
			EntityIDs:      []int64{3},
			ReturnEntities: docsync.ReturnEntitiesTop,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, docIDs(list.Docs))
		assert.Equal(t, []string{"SQLite"}, entityNames(list.Entities))
	})

	t.Run("omits entities", func(t *testing.T) {
		t.Parallel()

		list, err := s.ListDocs(ctx, docsync.ListDocsOptions{
			Limit:          1,
			ReturnEntities: docsync.ReturnEntitiesNone,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, docIDs(list.Docs))
		assert.Nil(t, list.Entities)
	})
}

func TestSearcher_Search(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	opts := docsync.SearchOptions{HighlightOpen: "<b>", HighlightClose: "</b>"}

	t.Run("ranks boosted documents first", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		items, err := s.Search(ctx, "sqlite", opts)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, int64(2), items[0].Doc.ID)
		assert.Equal(t, int64(2), items[1].Doc.ID)
		assert.Equal(t, int64(2), items[2].ID)
		assert.GreaterOrEqual(t, items[0].Score, items[2].Score)
	})

	t.Run("hydrates section and document", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		items, err := s.Search(ctx, "explains", opts)
		require.NoError(t, err)
		require.Len(t, items, 1)

		item := items[0]
		assert.Equal(t, int64(3), item.ID)
		assert.Equal(t, "Guide", item.Title)
		assert.Equal(t, "chapter", item.Metadata["kind"])
		require.NotNil(t, item.Level)
		assert.Equal(t, 2, *item.Level)
		assert.Contains(t, item.Snippet, "<b>explains</b>")
		assert.Contains(t, item.Snippet, "Jump to install.")
		assert.NotContains(t, item.Snippet, "#!2")

		require.NotNil(t, item.Image)
		assert.Equal(t, "https://example.com/logo.png", item.Image.URL)
		assert.Nil(t, item.Image.Size)

		assert.Equal(t, "https://example.com/guide", item.Doc.URL)
		assert.Equal(t, "Guide", item.Doc.Title)
		assert.InDelta(t, 1.0, item.Doc.Boost, 0.0001)
		require.NotNil(t, item.Doc.PublishedAt)
		assert.Nil(t, item.Link)
	})

	t.Run("resolves links in snippets", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		items, err := s.Search(ctx, "welcome", opts)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Contains(t, items[0].Snippet, "<b>Welcome</b>")
		assert.Contains(t, items[0].Snippet, "https://example.com/guide")
		require.NotNil(t, items[0].Link)
		assert.Equal(t, int64(2), items[0].Link.ID)
		assert.Equal(t, "https://example.com/guide", items[0].Link.URL)
	})

	t.Run("respects limit", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		items, err := s.Search(ctx, "sqlite", docsync.SearchOptions{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("section boost outranks equal text", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "boost.db")
		sqlitetest.Create(t, path, sqlitetest.Dataset{
			Docs: []sqlitetest.Doc{
				{ID: 1, URL: "https://example.com/a", Title: "A"},
				{ID: 2, URL: "https://example.com/b", Title: "B", Boost: 5},
			},
			Sections: []sqlitetest.Section{
				{ID: 1, Doc: 1, Contents: "alpha beta"},
				{ID: 2, Doc: 2, Contents: "alpha beta"},
			},
		})
		s := sqlite.NewSearcher(path, nil)
		defer s.Close()

		items, err := s.Search(ctx, "alpha", docsync.SearchOptions{})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, int64(2), items[0].ID)
		assert.Greater(t, items[0].Score, items[1].Score)
	})
}

func TestSearcher_Select(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSampleSearcher(t)

	t.Run("select all binds arguments", func(t *testing.T) {
		t.Parallel()

		rows, err := s.SelectAll(ctx, "SELECT id, url FROM docs WHERE id > ? ORDER BY id", 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, int64(3), rows[0]["id"])
		assert.Equal(t, "https://example.com/logo.png", rows[1]["url"])
	})

	t.Run("select one returns first row", func(t *testing.T) {
		t.Parallel()

		row, err := s.SelectOne(ctx, "SELECT name FROM entities ORDER BY id")
		require.NoError(t, err)
		assert.Equal(t, "SQLite", row["name"])
	})

	t.Run("select one without rows returns not found", func(t *testing.T) {
		t.Parallel()

		_, err := s.SelectOne(ctx, "SELECT id FROM docs WHERE id = ?", 42)
		assert.Equal(t, docsync.ENOTFOUND, docsync.ErrorCode(err))
	})

	t.Run("rejects writes", func(t *testing.T) {
		t.Parallel()

		_, err := s.SelectAll(ctx, "DELETE FROM docs")
		require.Error(t, err)
	})
}

func TestSearcher_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reopens after close", func(t *testing.T) {
		t.Parallel()

		s := newSampleSearcher(t)

		require.NoError(t, s.Open(ctx))
		require.NoError(t, s.Close())

		toc, err := s.TOC(ctx)
		require.NoError(t, err)
		assert.Len(t, toc, 2)
	})

	t.Run("fails on missing file", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSearcher(filepath.Join(t.TempDir(), "missing.db"), nil)
		require.Error(t, s.Open(ctx))
	})
}
