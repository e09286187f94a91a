package docsync

import "encoding/json"

// Remote query protocol. A client sends an Action JSON-encoded in the
// ActionParam query parameter of a GET request for the dataset URL; the
// server answers with a Response, or with the raw document body for
// documents that are not JSON.
const (
	ActionParam = "action"

	// FeaturesHeader lists the capabilities of a dataset source.
	FeaturesHeader = "X-Features"

	// FeatureSearcher advertises that the source answers remote queries.
	FeatureSearcher = "searcher"
)

// Searcher operations.
const (
	OpEntities    = "getEntities"
	OpTopEntities = "getTopEntities"
	OpTOC         = "getTOC"
	OpDoc         = "getDoc"
	OpListDocs    = "listDocs"
	OpSearch      = "search"
	OpSelectAll   = "selectAll"
	OpSelectOne   = "selectOne"
)

// Action is the envelope of a remote call.
type Action struct {
	Searcher *SearcherAction `json:"searcher"`
}

// SearcherAction names one Searcher operation and its parameters.
type SearcherAction struct {
	Operation  string          `json:"operation"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Response is the JSON envelope of a remote call result.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// EntitiesParams are the parameters of OpEntities. A nil DocIDs means all
// documents.
type EntitiesParams struct {
	Limit  int     `json:"limit,omitempty"`
	DocIDs []int64 `json:"docIds"`
}

// DocParams are the parameters of OpDoc.
type DocParams struct {
	DocID string `json:"docId"`
}

// ListDocsParams are the parameters of OpListDocs.
type ListDocsParams struct {
	Options ListDocsOptions `json:"options"`
}

// SearchParams are the parameters of OpSearch.
type SearchParams struct {
	Term    string        `json:"term"`
	Options SearchOptions `json:"options"`
}

// SelectParams are the parameters of OpSelectAll and OpSelectOne.
type SelectParams struct {
	SQL      string `json:"sql"`
	Bindings []any  `json:"bindings,omitempty"`
}
