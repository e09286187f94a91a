package docsync

import (
	"context"
	"time"
)

// Searcher answers queries against one dataset. Local implementations read a
// cached copy of the dataset file; remote implementations forward every call
// to the source.
type Searcher interface {
	// Open acquires underlying resources. Implementations open lazily on
	// first use, so calling Open is optional.
	Open(ctx context.Context) error

	// Close releases underlying resources. A later call may reopen them.
	Close() error

	// Metadata returns dataset-level key/value metadata.
	Metadata(ctx context.Context) (map[string]string, error)

	// Entities returns the entities with the most occurrences, optionally
	// restricted to the given documents, ordered by count descending.
	// A non-positive limit means DefaultEntityLimit.
	Entities(ctx context.Context, limit int, docIDs []int64) ([]*Entity, error)

	// TopEntities returns Entities filtered to those occurring at least twice.
	TopEntities(ctx context.Context) ([]*Entity, error)

	// TOC returns the table of contents of all non-crawl documents.
	TOC(ctx context.Context) ([]*TOCItem, error)

	// Doc hydrates one document by numeric ID or by URL.
	// Returns ENOTFOUND if the document does not exist.
	Doc(ctx context.Context, idOrURL string) (*Doc, error)

	// ListDocs lists documents, optionally filtered by entity.
	ListDocs(ctx context.Context, opts ListDocsOptions) (*DocList, error)

	// Search runs a full-text search over section text.
	Search(ctx context.Context, term string, opts SearchOptions) ([]*SearchItem, error)

	// SelectAll runs a parameterized query and returns all rows.
	SelectAll(ctx context.Context, query string, args ...any) ([]Row, error)

	// SelectOne runs a parameterized query and returns the first row.
	// Returns ENOTFOUND if the query yields no rows.
	SelectOne(ctx context.Context, query string, args ...any) (Row, error)
}

// Query defaults.
const (
	DefaultEntityLimit  = 100
	DefaultListLimit    = 100
	DefaultSearchLimit  = 100
	DefaultSnippetSize  = 64
	DefaultSectionLevel = 3

	// TopEntityMinCount is the occurrence count an entity needs to be
	// reported by TopEntities.
	TopEntityMinCount = 2
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Link references another document in the dataset.
type Link struct {
	ID    int64  `json:"id"`
	Crawl bool   `json:"crawl"`
	CRC   string `json:"crc,omitempty"`
	URL   string `json:"url"`
}

// Image references an image document in the dataset.
type Image struct {
	ID    int64  `json:"id"`
	Crawl bool   `json:"crawl"`
	CRC   string `json:"crc,omitempty"`
	Size  *int64 `json:"size"`
	Type  string `json:"type,omitempty"`
	URL   string `json:"url"`
}

// Doc is a document hydrated from the dataset.
type Doc struct {
	ID          int64          `json:"id"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Summary     string         `json:"summary"`
	Type        string         `json:"type"`
	Size        *int64         `json:"size,omitempty"`
	Boost       float64        `json:"boost,omitempty"`
	PublishedAt *time.Time     `json:"publishedAt"`
	Image       *Image         `json:"image"`
	Metadata    map[string]any `json:"metadata"`
	Contents    string         `json:"contents,omitempty"`

	// Binary reports that Contents holds raw bytes rather than rendered markup.
	Binary bool `json:"-"`
}

// Entity is a named entity with its occurrence count across documents.
type Entity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TOCItem is one document in the table of contents.
type TOCItem struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Sections []*TOCSection `json:"sections"`
}

// TOCSection is a titled section of a TOCItem.
type TOCSection struct {
	ID     int64  `json:"id"`
	Level  *int   `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor,omitempty"`
}

// ReturnEntities selects which entities ListDocs returns alongside documents.
type ReturnEntities string

// ReturnEntities constants for ListDocsOptions. The zero value behaves as
// ReturnEntitiesRelated.
const (
	ReturnEntitiesRelated ReturnEntities = "related"
	ReturnEntitiesTop     ReturnEntities = "top"
	ReturnEntitiesNone    ReturnEntities = "none"
)

// SortOrder represents the sort order for ListDocs.
type SortOrder string

// SortOrder constants for ListDocsOptions.
const (
	SortByPublishedAt SortOrder = "publishedAt"
	SortByEntities    SortOrder = "entities"
)

// ListDocsOptions configures ListDocs.
type ListDocsOptions struct {
	EntityIDs      []int64        `json:"entityIds,omitempty"`
	Limit          int            `json:"limit,omitempty"`
	ReturnEntities ReturnEntities `json:"returnEntities,omitempty"`
	SortBy         SortOrder      `json:"sortBy,omitempty"`
}

// DocList is the result of ListDocs.
type DocList struct {
	Docs     []*Doc    `json:"docs"`
	Entities []*Entity `json:"entities"`
}

// SearchOptions configures Search.
type SearchOptions struct {
	Limit       int `json:"limit,omitempty"`
	SnippetSize int `json:"snippetSize,omitempty"`

	// Markers wrapped around matched terms in titles and snippets.
	HighlightOpen  string `json:"highlightOpen,omitempty"`
	HighlightClose string `json:"highlightClose,omitempty"`
}

// SearchItem is one matching section.
type SearchItem struct {
	ID       int64          `json:"id"`
	Level    *int           `json:"level"`
	Boost    float64        `json:"boost"`
	Title    string         `json:"title"`
	Snippet  string         `json:"snippet"`
	Score    float64        `json:"score"`
	Image    *Image         `json:"image"`
	Link     *Link          `json:"link"`
	Metadata map[string]any `json:"metadata"`
	Doc      *Doc           `json:"doc"`
}
