// Package sqlitetest builds dataset files for tests.
package sqlitetest

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

// Schema is the dataset file layout read by sqlite.Searcher.
const Schema = `
CREATE TABLE metadata (
	id TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE docs (
	id INTEGER PRIMARY KEY,
	url TEXT,
	title TEXT,
	summary TEXT,
	type TEXT,
	size INTEGER,
	publishedAt INTEGER,
	boost REAL NOT NULL DEFAULT 0,
	image INTEGER,
	metadata TEXT,
	contents,
	crawl INTEGER NOT NULL DEFAULT 0,
	crc TEXT
);

CREATE TABLE sections (
	id INTEGER PRIMARY KEY,
	doc INTEGER NOT NULL,
	level INTEGER,
	title TEXT,
	contents TEXT,
	boost REAL NOT NULL DEFAULT 0,
	image INTEGER,
	link INTEGER,
	metadata TEXT
);

CREATE VIRTUAL TABLE sections_fts USING fts5(
	title,
	contents,
	content='sections',
	content_rowid='id'
);

CREATE TABLE entities (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE docs_entities (
	doc INTEGER NOT NULL,
	entity INTEGER NOT NULL
);
`

// Doc is a row of the docs table. Zero values are stored as NULL except
// Boost and Crawl.
type Doc struct {
	ID          int64
	URL         string
	Title       string
	Summary     string
	Type        string
	Size        int64
	PublishedAt time.Time
	Boost       float64
	Image       int64
	Metadata    string
	Contents    any
	Crawl       bool
	CRC         string
}

// Section is a row of the sections table. Zero values are stored as NULL
// except Boost.
type Section struct {
	ID       int64
	Doc      int64
	Level    int
	Title    string
	Contents string
	Boost    float64
	Image    int64
	Link     int64
	Metadata string
}

// Entity is a row of the entities table.
type Entity struct {
	ID   int64
	Name string
}

// Dataset describes the full contents of a dataset file.
type Dataset struct {
	Metadata     map[string]string
	Docs         []Doc
	Sections     []Section
	Entities     []Entity
	DocsEntities [][2]int64
}

// Create writes ds into a new dataset file at path.
func Create(tb testing.TB, path string, ds Dataset) {
	tb.Helper()

	db, err := sql.Open("sqlite3", (&url.URL{Scheme: "file", OmitHost: true, Path: path}).String())
	require.NoError(tb, err)
	defer db.Close()

	tx, err := db.Begin()
	require.NoError(tb, err)
	defer tx.Rollback()

	_, err = tx.Exec(Schema)
	require.NoError(tb, err)

	for k, v := range ds.Metadata {
		_, err = tx.Exec(`INSERT INTO metadata (id, value) VALUES (?, ?)`, k, v)
		require.NoError(tb, err)
	}

	for _, d := range ds.Docs {
		var publishedAt any
		if !d.PublishedAt.IsZero() {
			publishedAt = d.PublishedAt.UnixMilli()
		}
		_, err = tx.Exec(`
			INSERT INTO docs (id, url, title, summary, type, size, publishedAt, boost, image, metadata, contents, crawl, crc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, null(d.URL), null(d.Title), null(d.Summary), null(d.Type), null(d.Size), publishedAt,
			d.Boost, null(d.Image), null(d.Metadata), d.Contents, boolInt(d.Crawl), null(d.CRC))
		require.NoError(tb, err)
	}

	for _, s := range ds.Sections {
		_, err = tx.Exec(`
			INSERT INTO sections (id, doc, level, title, contents, boost, image, link, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Doc, null(s.Level), null(s.Title), null(s.Contents), s.Boost,
			null(s.Image), null(s.Link), null(s.Metadata))
		require.NoError(tb, err)
	}

	for _, e := range ds.Entities {
		_, err = tx.Exec(`INSERT INTO entities (id, name) VALUES (?, ?)`, e.ID, e.Name)
		require.NoError(tb, err)
	}

	for _, de := range ds.DocsEntities {
		_, err = tx.Exec(`INSERT INTO docs_entities (doc, entity) VALUES (?, ?)`, de[0], de[1])
		require.NoError(tb, err)
	}

	_, err = tx.Exec(`INSERT INTO sections_fts (sections_fts) VALUES ('rebuild')`)
	require.NoError(tb, err)

	require.NoError(tb, tx.Commit())
}

// CreateSample writes Sample into name under a temporary directory and
// returns the file path.
func CreateSample(tb testing.TB, name string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	Create(tb, path, Sample())
	return path
}

// Sample returns a small dataset covering every table.
//
// Docs 1 and 2 are titled articles, doc 3 is a binary file and doc 4 is a
// crawled image used by doc 1 and section 3. Entity 1 (SQLite) occurs in two
// docs; entities 2 and 3 in one each.
func Sample() Dataset {
	return Dataset{
		Metadata: map[string]string{
			"title":          "Sample",
			"footer":         "\n\nSource: {url} ({license})",
			"updateInterval": "1h",
		},
		Docs: []Doc{
			{
				ID:          1,
				URL:         "https://example.com/intro",
				Title:       "Introduction",
				Summary:     "Getting started",
				Type:        "text/markdown",
				PublishedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				Image:       4,
				Metadata:    `{"license":"CC-BY"}`,
			},
			{
				ID:          2,
				URL:         "https://example.com/guide",
				Title:       "Guide",
				Summary:     "In depth",
				Type:        "text/html",
				PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				Boost:       1,
				Contents:    "<p>Pre-rendered guide</p>",
			},
			{
				ID:       3,
				URL:      "https://example.com/data.bin",
				Type:     "application/octet-stream",
				Size:     3,
				Contents: []byte{0, 1, 2},
			},
			{
				ID:    4,
				URL:   "https://example.com/logo.png",
				Type:  "image/png",
				Size:  1234,
				Crawl: true,
				CRC:   "abc",
			},
		},
		Sections: []Section{
			{
				ID:       1,
				Doc:      1,
				Level:    1,
				Title:    "Intro {#!1}",
				Contents: "Welcome to the sample dataset. See #:2 for the guide.",
				Link:     2,
			},
			{
				ID:       2,
				Doc:      1,
				Title:    "Install",
				Contents: "Install the sqlite tool.",
			},
			{
				ID:       3,
				Doc:      2,
				Level:    2,
				Title:    "Guide {#!3}",
				Contents: "The sqlite guide explains queries. Jump to [install](#!2).",
				Image:    4,
				Metadata: `{"kind":"chapter"}`,
			},
			{
				ID:       4,
				Doc:      2,
				Level:    2,
				Contents: "Untitled notes about sqlite.",
			},
		},
		Entities: []Entity{
			{ID: 1, Name: "SQLite"},
			{ID: 2, Name: "Go"},
			{ID: 3, Name: "Markdown"},
		},
		DocsEntities: [][2]int64{
			{1, 1},
			{2, 1},
			{1, 2},
			{2, 3},
		},
	}
}

// null maps zero values to SQL NULL.
func null[T comparable](v T) any {
	var zero T
	if v == zero {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
