package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/fwojciec/docsync"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultRemoteTimeout bounds a single remote query.
const DefaultRemoteTimeout = 150 * time.Second

// Ensure RemoteSearcher implements docsync.Searcher at compile time.
var _ docsync.Searcher = (*RemoteSearcher)(nil)

// RemoteSearcher answers queries by forwarding them to the dataset source.
// It holds no local state.
type RemoteSearcher struct {
	url     string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// RemoteOption configures a RemoteSearcher.
type RemoteOption func(*RemoteSearcher)

// WithRemoteTimeout sets the timeout of each remote query.
// Defaults to DefaultRemoteTimeout (150s) if not specified.
func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(s *RemoteSearcher) {
		s.timeout = d
	}
}

// WithRateLimit caps the rate of remote queries to rps per second.
func WithRateLimit(rps float64) RemoteOption {
	return func(s *RemoteSearcher) {
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewRemoteSearcher creates a RemoteSearcher for the dataset at rawURL.
func NewRemoteSearcher(rawURL string, opts ...RemoteOption) *RemoteSearcher {
	s := &RemoteSearcher{
		url:     rawURL,
		client:  &http.Client{},
		timeout: DefaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open is a no-op.
func (s *RemoteSearcher) Open(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *RemoteSearcher) Close() error {
	return nil
}

// Metadata returns an empty map. Remote sources publish metadata through
// probe headers instead.
func (s *RemoteSearcher) Metadata(ctx context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

// Entities returns up to limit entities, restricted to docIDs when given.
func (s *RemoteSearcher) Entities(ctx context.Context, limit int, docIDs []int64) ([]*docsync.Entity, error) {
	var out []*docsync.Entity
	err := s.callJSON(ctx, docsync.OpEntities, docsync.EntitiesParams{Limit: limit, DocIDs: docIDs}, &out)
	return out, err
}

// TopEntities returns entities that occur in at least two documents.
func (s *RemoteSearcher) TopEntities(ctx context.Context) ([]*docsync.Entity, error) {
	var out []*docsync.Entity
	err := s.callJSON(ctx, docsync.OpTopEntities, struct{}{}, &out)
	return out, err
}

// TOC returns the table of contents.
func (s *RemoteSearcher) TOC(ctx context.Context) ([]*docsync.TOCItem, error) {
	var out []*docsync.TOCItem
	err := s.callJSON(ctx, docsync.OpTOC, struct{}{}, &out)
	return out, err
}

// Doc fetches a document. Sources answer binary documents with their own
// content type; those come back with Binary set.
func (s *RemoteSearcher) Doc(ctx context.Context, idOrURL string) (*docsync.Doc, error) {
	resp, err := s.call(ctx, docsync.OpDoc, docsync.DocParams{DocID: idOrURL})
	if err != nil {
		return nil, err
	}

	if !resp.json {
		return &docsync.Doc{
			Contents: string(resp.body),
			Type:     resp.contentType,
			Binary:   true,
		}, nil
	}

	var doc *docsync.Doc
	if err := decodeResult(resp.result, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, docsync.Errorf(docsync.ENOTFOUND, "document %q not found", idOrURL)
	}
	return doc, nil
}

// ListDocs returns a page of documents with their entities.
func (s *RemoteSearcher) ListDocs(ctx context.Context, opts docsync.ListDocsOptions) (*docsync.DocList, error) {
	var out docsync.DocList
	if err := s.callJSON(ctx, docsync.OpListDocs, docsync.ListDocsParams{Options: opts}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a full text search on the source.
func (s *RemoteSearcher) Search(ctx context.Context, term string, opts docsync.SearchOptions) ([]*docsync.SearchItem, error) {
	var out []*docsync.SearchItem
	err := s.callJSON(ctx, docsync.OpSearch, docsync.SearchParams{Term: term, Options: opts}, &out)
	return out, err
}

// SelectAll runs a raw query on the source. Sources reject it unless they
// enable raw queries.
func (s *RemoteSearcher) SelectAll(ctx context.Context, query string, args ...any) ([]docsync.Row, error) {
	var out []docsync.Row
	err := s.callJSON(ctx, docsync.OpSelectAll, docsync.SelectParams{SQL: query, Bindings: args}, &out)
	return out, err
}

// SelectOne is like SelectAll but returns the first row, or ENOTFOUND.
func (s *RemoteSearcher) SelectOne(ctx context.Context, query string, args ...any) (docsync.Row, error) {
	var out docsync.Row
	if err := s.callJSON(ctx, docsync.OpSelectOne, docsync.SelectParams{SQL: query, Bindings: args}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, docsync.Errorf(docsync.ENOTFOUND, "no rows")
	}
	return out, nil
}

// response is a decoded remote answer: either a JSON result or a raw body.
type response struct {
	json        bool
	result      json.RawMessage
	contentType string
	body        []byte
}

func (s *RemoteSearcher) callJSON(ctx context.Context, op string, params, out any) error {
	resp, err := s.call(ctx, op, params)
	if err != nil {
		return err
	}
	if !resp.json {
		return docsync.Errorf(docsync.EDECODE, "%s: unexpected content type %q", op, resp.contentType)
	}
	return decodeResult(resp.result, out)
}

func (s *RemoteSearcher) call(ctx context.Context, op string, params any) (*response, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, docsync.Errorf(docsync.EINVALID, "%s: encode parameters: %v", op, err)
	}
	action, err := json.Marshal(docsync.Action{
		Searcher: &docsync.SearcherAction{Operation: op, Parameters: raw},
	})
	if err != nil {
		return nil, docsync.Errorf(docsync.EINVALID, "%s: encode action: %v", op, err)
	}

	u, err := url.Parse(s.url)
	if err != nil {
		return nil, docsync.Errorf(docsync.EINVALID, "invalid url %q: %v", s.url, err)
	}
	q := u.Query()
	q.Set(docsync.ActionParam, string(action))
	u.RawQuery = q.Encode()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, docsync.Errorf(docsync.EINVALID, "invalid url %q: %v", s.url, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, docsync.Errorf(docsync.ETRANSPORT, "%s %s: %v", op, s.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, docsync.Errorf(docsync.ETRANSPORT, "%s %s: %v", op, s.url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	isJSON := mediaType == "application/json"

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(resp.StatusCode, op, isJSON, body)
	}

	out := &response{json: isJSON, contentType: contentType, body: body}
	if isJSON {
		var env docsync.Response
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
			return nil, docsync.Errorf(docsync.EDECODE, "%s: decode response: %v", op, err)
		}
		out.result = env.Result
	}
	return out, nil
}

// statusError maps an unsuccessful status to an error code, keeping the
// server message when it sent one.
func statusError(status int, op string, isJSON bool, body []byte) error {
	msg := http.StatusText(status)
	if isJSON {
		var env docsync.Response
		if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
			msg = env.Error
		}
	}

	code := docsync.ETRANSPORT
	switch status {
	case http.StatusNotFound:
		code = docsync.ENOTFOUND
	case http.StatusBadRequest:
		code = docsync.EINVALID
	case http.StatusForbidden:
		code = docsync.EFORBIDDEN
	}
	return docsync.Errorf(code, "%s: %s", op, msg)
}

// decodeResult decodes a result into out. A missing or null result leaves
// out untouched.
func decodeResult(result json.RawMessage, out any) error {
	if len(result) == 0 || string(result) == "null" {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return docsync.Errorf(docsync.EDECODE, "decode result: %v", err)
	}
	return nil
}
