package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/docsync"
	docsynchttp "github.com/fwojciec/docsync/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteServer decodes each action and answers with handle's result.
func remoteServer(t *testing.T, handle func(w http.ResponseWriter, a *docsync.SearcherAction)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var action docsync.Action
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get(docsync.ActionParam)), &action))
		require.NotNil(t, action.Searcher)
		handle(w, action.Searcher)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeResult(w http.ResponseWriter, v any) {
	raw, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(docsync.Response{Result: raw})
}

func TestRemoteSearcher_Entities(t *testing.T) {
	t.Parallel()

	var got docsync.EntitiesParams
	server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
		assert.Equal(t, docsync.OpEntities, a.Operation)
		require.NoError(t, json.Unmarshal(a.Parameters, &got))
		writeResult(w, []*docsync.Entity{{ID: 1, Name: "SQLite", Count: 2}})
	})

	s := docsynchttp.NewRemoteSearcher(server.URL + "/sample.db")
	entities, err := s.Entities(context.Background(), 5, []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, []int64{1, 2}, got.DocIDs)
	require.Len(t, entities, 1)
	assert.Equal(t, "SQLite", entities[0].Name)
}

func TestRemoteSearcher_Search(t *testing.T) {
	t.Parallel()

	var got docsync.SearchParams
	server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
		assert.Equal(t, docsync.OpSearch, a.Operation)
		require.NoError(t, json.Unmarshal(a.Parameters, &got))
		writeResult(w, []*docsync.SearchItem{{ID: 3, Title: "Guide", Score: 1.5}})
	})

	s := docsynchttp.NewRemoteSearcher(server.URL)
	items, err := s.Search(context.Background(), "sqlite", docsync.SearchOptions{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", got.Term)
	assert.Equal(t, 10, got.Options.Limit)
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ID)
	assert.InDelta(t, 1.5, items[0].Score, 0.0001)
}

func TestRemoteSearcher_Doc(t *testing.T) {
	t.Parallel()

	t.Run("decodes JSON document", func(t *testing.T) {
		t.Parallel()

		server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
			var p docsync.DocParams
			require.NoError(t, json.Unmarshal(a.Parameters, &p))
			assert.Equal(t, "https://example.com/guide", p.DocID)
			writeResult(w, &docsync.Doc{ID: 2, Title: "Guide", Contents: "<p>hi</p>"})
		})

		doc, err := docsynchttp.NewRemoteSearcher(server.URL).Doc(context.Background(), "https://example.com/guide")
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.ID)
		assert.Equal(t, "<p>hi</p>", doc.Contents)
		assert.False(t, doc.Binary)
	})

	t.Run("wraps non-JSON body as binary document", func(t *testing.T) {
		t.Parallel()

		server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		})

		doc, err := docsynchttp.NewRemoteSearcher(server.URL).Doc(context.Background(), "4")
		require.NoError(t, err)
		assert.True(t, doc.Binary)
		assert.Equal(t, "image/png", doc.Type)
		assert.Equal(t, string([]byte{0x89, 'P', 'N', 'G'}), doc.Contents)
	})

	t.Run("null result is not found", func(t *testing.T) {
		t.Parallel()

		server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
			writeResult(w, nil)
		})

		_, err := docsynchttp.NewRemoteSearcher(server.URL).Doc(context.Background(), "9")
		assert.Equal(t, docsync.ENOTFOUND, docsync.ErrorCode(err))
	})

	t.Run("maps status codes", func(t *testing.T) {
		t.Parallel()

		for status, code := range map[int]string{
			http.StatusNotFound:            docsync.ENOTFOUND,
			http.StatusBadRequest:          docsync.EINVALID,
			http.StatusForbidden:           docsync.EFORBIDDEN,
			http.StatusInternalServerError: docsync.ETRANSPORT,
		} {
			server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(docsync.Response{Error: "nope"})
			})

			_, err := docsynchttp.NewRemoteSearcher(server.URL).Doc(context.Background(), "1")
			assert.Equal(t, code, docsync.ErrorCode(err), "status %d", status)
			assert.Equal(t, "getDoc: nope", docsync.ErrorMessage(err))
		}
	})
}

func TestRemoteSearcher_Select(t *testing.T) {
	t.Parallel()

	t.Run("sends query and bindings", func(t *testing.T) {
		t.Parallel()

		var got docsync.SelectParams
		server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
			assert.Equal(t, docsync.OpSelectAll, a.Operation)
			require.NoError(t, json.Unmarshal(a.Parameters, &got))
			writeResult(w, []docsync.Row{{"id": 1}})
		})

		rows, err := docsynchttp.NewRemoteSearcher(server.URL).SelectAll(context.Background(), "SELECT id FROM docs WHERE id = ?", 1)
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM docs WHERE id = ?", got.SQL)
		assert.Equal(t, []any{float64(1)}, got.Bindings)
		require.Len(t, rows, 1)
		assert.Equal(t, float64(1), rows[0]["id"])
	})

	t.Run("select one without rows is not found", func(t *testing.T) {
		t.Parallel()

		server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
			writeResult(w, nil)
		})

		_, err := docsynchttp.NewRemoteSearcher(server.URL).SelectOne(context.Background(), "SELECT 1 WHERE 0")
		assert.Equal(t, docsync.ENOTFOUND, docsync.ErrorCode(err))
	})
}

func TestRemoteSearcher_Metadata(t *testing.T) {
	t.Parallel()

	s := docsynchttp.NewRemoteSearcher("http://unused.invalid/sample.db")
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	md, err := s.Metadata(context.Background())
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestRemoteSearcher_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	s := docsynchttp.NewRemoteSearcher(server.URL, docsynchttp.WithRemoteTimeout(10*time.Millisecond))
	_, err := s.TOC(context.Background())
	require.Error(t, err)
	assert.Equal(t, docsync.ETRANSPORT, docsync.ErrorCode(err))
}

func TestRemoteSearcher_RateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := remoteServer(t, func(w http.ResponseWriter, a *docsync.SearcherAction) {
		calls.Add(1)
		writeResult(w, []*docsync.TOCItem{})
	})

	s := docsynchttp.NewRemoteSearcher(server.URL, docsynchttp.WithRateLimit(1))

	_, err := s.TOC(context.Background())
	require.NoError(t, err)

	// The single token is spent; the next call cannot get one before the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.TOC(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
