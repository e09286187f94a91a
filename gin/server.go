// Package gin serves dataset files over HTTP and answers remote queries
// against them, so that other instances can use a dataset without
// downloading it.
package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/docsync"
	"github.com/gin-gonic/gin"
)

// ShutdownTimeout bounds graceful shutdown of ListenAndServe.
const ShutdownTimeout = 10 * time.Second

// Source is a dataset the server can publish.
type Source interface {
	Path() string
	Searcher() docsync.Searcher
}

// LookupFunc resolves a dataset ID to a Source.
// Returns ENOTFOUND if no dataset has the ID.
type LookupFunc func(id string) (Source, error)

// Server publishes datasets at /<id>.db.
type Server struct {
	router     *gin.Engine
	lookup     LookupFunc
	logger     *slog.Logger
	rawQueries bool
}

// Option configures a Server.
type Option func(*Server)

// WithRawQueries allows clients to run arbitrary read-only SQL through
// selectAll and selectOne.
func WithRawQueries() Option {
	return func(s *Server) {
		s.rawQueries = true
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server resolving datasets through lookup.
func NewServer(lookup LookupFunc, opts ...Option) *Server {
	s := &Server{
		lookup: lookup,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(s.logger))
	router.HEAD("/:file", s.handleHead)
	router.GET("/:file", s.handleGet)
	s.router = router

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router.Handler()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("starting to shut down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func(begin time.Time) {
			logger.Info("request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"request_id", c.GetHeader("X-Request-Id"),
				"duration", time.Since(begin),
			)
		}(time.Now())
		c.Next()
	}
}

// source resolves the dataset addressed by the request and checks that
// its file is present.
func (s *Server) source(c *gin.Context) (Source, bool) {
	id := strings.TrimSuffix(c.Param("file"), docsync.DatasetExt)
	src, err := s.lookup(id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if _, err := os.Stat(src.Path()); err != nil {
		writeError(c, docsync.Errorf(docsync.ENOTFOUND, "dataset %q has no local file", id))
		return nil, false
	}
	return src, true
}

func (s *Server) handleHead(c *gin.Context) {
	src, ok := s.source(c)
	if !ok {
		return
	}

	s.serveFile(c, src)
}

// serveFile streams the dataset file. HEAD and plain GET carry the same
// headers so a probe and a download of an unchanged file describe it
// identically.
func (s *Server) serveFile(c *gin.Context, src Source) {
	c.Header(docsync.FeaturesHeader, docsync.FeatureSearcher)
	if md, err := src.Searcher().Metadata(c.Request.Context()); err == nil {
		for k, v := range md {
			c.Header("X-Meta-"+k, v)
		}
	} else {
		s.logger.Warn("failed to read dataset metadata", "path", src.Path(), "err", err)
	}
	c.File(src.Path())
}

func (s *Server) handleGet(c *gin.Context) {
	src, ok := s.source(c)
	if !ok {
		return
	}

	raw := c.Query(docsync.ActionParam)
	if raw == "" {
		s.serveFile(c, src)
		return
	}

	var action docsync.Action
	if err := json.Unmarshal([]byte(raw), &action); err != nil || action.Searcher == nil {
		writeError(c, docsync.Errorf(docsync.EINVALID, "invalid action"))
		return
	}

	result, err := s.dispatch(c.Request.Context(), src.Searcher(), action.Searcher)
	if err != nil {
		writeError(c, err)
		return
	}

	if doc, ok := result.(*docsync.Doc); ok && doc.Binary {
		contentType := doc.Type
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(http.StatusOK, contentType, []byte(doc.Contents))
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) dispatch(ctx context.Context, searcher docsync.Searcher, action *docsync.SearcherAction) (any, error) {
	switch action.Operation {
	case docsync.OpEntities:
		var p docsync.EntitiesParams
		if err := decodeParams(action.Parameters, &p); err != nil {
			return nil, err
		}
		return searcher.Entities(ctx, p.Limit, p.DocIDs)
	case docsync.OpTopEntities:
		return searcher.TopEntities(ctx)
	case docsync.OpTOC:
		return searcher.TOC(ctx)
	case docsync.OpDoc:
		var p docsync.DocParams
		if err := decodeParams(action.Parameters, &p); err != nil {
			return nil, err
		}
		return searcher.Doc(ctx, p.DocID)
	case docsync.OpListDocs:
		var p docsync.ListDocsParams
		if err := decodeParams(action.Parameters, &p); err != nil {
			return nil, err
		}
		return searcher.ListDocs(ctx, p.Options)
	case docsync.OpSearch:
		var p docsync.SearchParams
		if err := decodeParams(action.Parameters, &p); err != nil {
			return nil, err
		}
		return searcher.Search(ctx, p.Term, p.Options)
	case docsync.OpSelectAll, docsync.OpSelectOne:
		if !s.rawQueries {
			return nil, docsync.Errorf(docsync.EFORBIDDEN, "raw queries are disabled")
		}
		p, err := decodeSelectParams(action.Parameters)
		if err != nil {
			return nil, err
		}
		if action.Operation == docsync.OpSelectOne {
			return searcher.SelectOne(ctx, p.SQL, p.Bindings...)
		}
		return searcher.SelectAll(ctx, p.SQL, p.Bindings...)
	default:
		return nil, docsync.Errorf(docsync.EINVALID, "unknown operation %q", action.Operation)
	}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return docsync.Errorf(docsync.EINVALID, "invalid parameters: %v", err)
	}
	return nil
}

// decodeSelectParams keeps integer bindings integral so they compare
// against integer columns the way the client meant.
func decodeSelectParams(raw json.RawMessage) (*docsync.SelectParams, error) {
	var p docsync.SelectParams
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, docsync.Errorf(docsync.EINVALID, "invalid parameters: %v", err)
	}
	for i, b := range p.Bindings {
		n, ok := b.(json.Number)
		if !ok {
			continue
		}
		if v, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			p.Bindings[i] = v
		} else if v, err := n.Float64(); err == nil {
			p.Bindings[i] = v
		}
	}
	return &p, nil
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch docsync.ErrorCode(err) {
	case docsync.ENOTFOUND:
		status = http.StatusNotFound
	case docsync.EINVALID, docsync.EDECODE:
		status = http.StatusBadRequest
	case docsync.EFORBIDDEN:
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, docsync.Response{Error: docsync.ErrorMessage(err)})
}
