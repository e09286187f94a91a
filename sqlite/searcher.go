package sqlite

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/fwojciec/docsync"
)

// Compile-time interface verification.
var _ docsync.Searcher = (*Searcher)(nil)

// maxSnippetTokens is the largest snippet size FTS5 accepts.
const maxSnippetTokens = 64

var footerFieldRe = regexp.MustCompile(`\{(\w+)\}`)

// Searcher implements docsync.Searcher over a local dataset file.
// The database is opened read-only on first use and reopened after Close.
type Searcher struct {
	db        *DB
	renderer  docsync.Renderer
	normalize docsync.URLNormalizer
	datasetID string

	mu       sync.Mutex
	metadata map[string]string
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithNormalizer rewrites URLs of cross-document links.
func WithNormalizer(fn docsync.URLNormalizer) Option {
	return func(s *Searcher) {
		s.normalize = fn
	}
}

// WithDatasetID sets the dataset ID passed to the URL normalizer.
func WithDatasetID(id string) Option {
	return func(s *Searcher) {
		s.datasetID = id
	}
}

// NewSearcher creates a Searcher for the dataset file at path. A nil
// renderer leaves document contents and snippets as markdown.
func NewSearcher(path string, renderer docsync.Renderer, opts ...Option) *Searcher {
	s := &Searcher{
		db:       NewDB(path),
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the database if it is not open yet.
func (s *Searcher) Open(ctx context.Context) error {
	_, err := s.conn()
	return err
}

// Close closes the database and forgets cached metadata.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = nil
	return s.db.Close()
}

// conn returns the open connection, opening it on first use.
func (s *Searcher) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db.db == nil {
		if err := s.db.Open(); err != nil {
			return nil, err
		}
	}
	return s.db.db, nil
}

// SelectAll runs a parameterized query and returns all rows.
func (s *Searcher) SelectAll(ctx context.Context, query string, args ...any) ([]docsync.Row, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// SelectOne runs a parameterized query and returns the first row.
func (s *Searcher) SelectOne(ctx context.Context, query string, args ...any) (docsync.Row, error) {
	rows, err := s.SelectAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, docsync.Errorf(docsync.ENOTFOUND, "no rows")
	}
	return rows[0], nil
}

// Metadata returns the metadata table as a map. The result is cached until Close.
func (s *Searcher) Metadata(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	cached := s.metadata
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	rows, err := s.SelectAll(ctx, `SELECT id, value FROM metadata`)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(rows))
	for _, row := range rows {
		metadata[rowString(row, "id")] = rowString(row, "value")
	}

	s.mu.Lock()
	s.metadata = metadata
	s.mu.Unlock()

	return metadata, nil
}

// Entities returns entities ordered by occurrence count.
func (s *Searcher) Entities(ctx context.Context, limit int, docIDs []int64) ([]*docsync.Entity, error) {
	if limit <= 0 {
		limit = docsync.DefaultEntityLimit
	}
	if docIDs != nil && len(docIDs) == 0 {
		return []*docsync.Entity{}, nil
	}

	var query strings.Builder
	var args []any

	query.WriteString(`
		SELECT docs_entities.entity AS id, entities.name AS name, COUNT(*) AS entityCount
		FROM docs_entities
		LEFT JOIN entities ON entities.id = docs_entities.entity`)
	if docIDs != nil {
		query.WriteString(" WHERE docs_entities.doc IN (" + placeholders(len(docIDs)) + ")")
		args = append(args, int64Args(docIDs)...)
	}
	query.WriteString(" GROUP BY docs_entities.entity ORDER BY entityCount DESC, docs_entities.entity ASC LIMIT ?")
	args = append(args, limit)

	rows, err := s.SelectAll(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}

	entities := make([]*docsync.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, &docsync.Entity{
			ID:    rowID(row, "id"),
			Name:  rowString(row, "name"),
			Count: int(rowID(row, "entityCount")),
		})
	}
	return entities, nil
}

// TopEntities returns entities that occur in at least two documents.
func (s *Searcher) TopEntities(ctx context.Context) ([]*docsync.Entity, error) {
	entities, err := s.Entities(ctx, docsync.DefaultEntityLimit, nil)
	if err != nil {
		return nil, err
	}

	top := make([]*docsync.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Count >= docsync.TopEntityMinCount {
			top = append(top, e)
		}
	}
	return top, nil
}

// TOC returns titled documents with their titled sections.
func (s *Searcher) TOC(ctx context.Context) ([]*docsync.TOCItem, error) {
	docs, err := s.SelectAll(ctx, `SELECT id, title FROM docs WHERE crawl = 0 AND title IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	sections, err := s.SelectAll(ctx, `SELECT id, doc, level, title FROM sections WHERE title IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}

	byDoc := make(map[int64][]*docsync.TOCSection)
	for _, row := range sections {
		title, anchor := docsync.ExtractAnchor(rowString(row, "title"))
		doc := rowID(row, "doc")
		byDoc[doc] = append(byDoc[doc], &docsync.TOCSection{
			ID:     rowID(row, "id"),
			Level:  rowIntPtr(row, "level"),
			Title:  title,
			Anchor: anchor,
		})
	}

	items := make([]*docsync.TOCItem, 0, len(docs))
	for _, row := range docs {
		id := rowID(row, "id")
		item := &docsync.TOCItem{
			ID:       id,
			Title:    rowString(row, "title"),
			Sections: byDoc[id],
		}
		if item.Sections == nil {
			item.Sections = []*docsync.TOCSection{}
		}
		items = append(items, item)
	}
	return items, nil
}

// Doc hydrates a document by numeric ID or URL.
func (s *Searcher) Doc(ctx context.Context, idOrURL string) (*docsync.Doc, error) {
	metadata, err := s.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	where := "docs.url = ?"
	var arg any = idOrURL
	if id, err := strconv.ParseInt(idOrURL, 10, 64); err == nil {
		where = "docs.id = ?"
		arg = id
	}

	row, err := s.SelectOne(ctx, `
		SELECT
			docs.*,
			typeof(docs.contents) AS contentsType,
			imageDocs.crawl AS imageDocCrawl,
			imageDocs.crc AS imageDocCrc,
			imageDocs.size AS imageDocSize,
			imageDocs.type AS imageDocType,
			imageDocs.url AS imageDocUrl
		FROM docs
			LEFT JOIN docs AS imageDocs ON docs.image = imageDocs.id
		WHERE `+where+` LIMIT 1`, arg)
	if docsync.ErrorCode(err) == docsync.ENOTFOUND {
		return nil, docsync.Errorf(docsync.ENOTFOUND, "document %q not found", idOrURL)
	} else if err != nil {
		return nil, err
	}

	doc, err := docFromRow(row, "")
	if err != nil {
		return nil, err
	}
	doc.Image = rowImage(row, "image", "imageDoc")

	switch rowString(row, "contentsType") {
	case "blob":
		doc.Binary = true
		doc.Contents = rowString(row, "contents")
	case "text":
		doc.Contents = rowString(row, "contents")
	}

	if doc.Contents == "" && !doc.Binary {
		if doc.Contents, err = s.assembleContents(ctx, doc.ID); err != nil {
			return nil, err
		}
	}

	if footer := metadata["footer"]; footer != "" && !doc.Binary {
		doc.Contents += renderFooter(footer, row, doc.Metadata)
	}

	return doc, nil
}

// assembleContents builds document contents from its sections and renders them.
func (s *Searcher) assembleContents(ctx context.Context, docID int64) (string, error) {
	sections, err := s.SelectAll(ctx, `SELECT id, level, title, contents FROM sections WHERE doc = ? ORDER BY id ASC`, docID)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(sections))
	for _, row := range sections {
		var b strings.Builder
		if title := rowString(row, "title"); title != "" {
			level, _ := rowInt64(row, "level")
			if level <= 0 {
				level = docsync.DefaultSectionLevel
			}
			b.WriteString(strings.Repeat("#", int(level)))
			b.WriteString(" ")
			b.WriteString(title)
			b.WriteString("\n\n")
		}
		b.WriteString(rowString(row, "contents"))
		parts = append(parts, b.String())
	}

	contents, err := s.replaceLinks(ctx, strings.Join(parts, "\n\n"))
	if err != nil {
		return "", err
	}
	return s.render(docsync.ReplaceAnchors(contents), false)
}

// renderFooter substitutes {field} placeholders from document columns first,
// then from document metadata. Unknown fields render empty.
func renderFooter(footer string, row docsync.Row, metadata map[string]any) string {
	return footerFieldRe.ReplaceAllStringFunc(footer, func(m string) string {
		key := m[1 : len(m)-1]
		if v := rowString(row, key); v != "" {
			return v
		}
		if v, ok := metadata[key]; ok && v != nil {
			return rowString(docsync.Row{key: v}, key)
		}
		return ""
	})
}

// ListDocs lists documents ordered by boost and publish date.
func (s *Searcher) ListDocs(ctx context.Context, opts docsync.ListDocsOptions) (*docsync.DocList, error) {
	if opts.Limit <= 0 {
		opts.Limit = docsync.DefaultListLimit
	}
	if opts.ReturnEntities == "" {
		opts.ReturnEntities = docsync.ReturnEntitiesRelated
	}
	if opts.SortBy == "" {
		opts.SortBy = docsync.SortByPublishedAt
	}

	var entities []*docsync.Entity
	if len(opts.EntityIDs) == 0 && opts.SortBy == docsync.SortByEntities {
		top, err := s.TopEntities(ctx)
		if err != nil {
			return nil, err
		}
		entities = top
		for _, e := range top {
			opts.EntityIDs = append(opts.EntityIDs, e.ID)
		}
	}

	var query strings.Builder
	var args []any

	query.WriteString(`
		SELECT
			docs.id,
			docs.title,
			docs.summary,
			docs.metadata,
			docs.publishedAt,
			docs.url,
			docs.image,
			imageDocs.crawl AS imageCrawl,
			imageDocs.crc AS imageCrc,
			imageDocs.size AS imageSize,
			imageDocs.type AS imageType,
			imageDocs.url AS imageUrl
		FROM docs
			LEFT JOIN docs AS imageDocs ON docs.image = imageDocs.id`)
	if len(opts.EntityIDs) > 0 {
		query.WriteString(`
		WHERE EXISTS (
			SELECT 1 FROM docs_entities
			WHERE docs_entities.doc = docs.id
				AND docs_entities.entity IN (` + placeholders(len(opts.EntityIDs)) + `))`)
		args = append(args, int64Args(opts.EntityIDs)...)
	} else {
		query.WriteString(" WHERE docs.title IS NOT NULL")
	}
	query.WriteString(" ORDER BY docs.boost DESC, docs.publishedAt DESC LIMIT ?")
	args = append(args, opts.Limit)

	rows, err := s.SelectAll(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}

	docs := make([]*docsync.Doc, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		doc, err := docFromRow(row, "")
		if err != nil {
			return nil, err
		}
		doc.Image = rowImage(row, "image", "image")
		docs = append(docs, doc)
		ids = append(ids, doc.ID)
	}

	if entities == nil {
		switch opts.ReturnEntities {
		case docsync.ReturnEntitiesRelated:
			entities, err = s.Entities(ctx, docsync.DefaultEntityLimit, ids)
		case docsync.ReturnEntitiesTop:
			entities, err = s.TopEntities(ctx)
		}
		if err != nil {
			return nil, err
		}
	}
	if opts.ReturnEntities == docsync.ReturnEntitiesNone {
		entities = nil
	}

	return &docsync.DocList{Docs: docs, Entities: entities}, nil
}

// Search matches term against the section index. Results are ordered by
// relevance combined with section and document boost, best first.
func (s *Searcher) Search(ctx context.Context, term string, opts docsync.SearchOptions) ([]*docsync.SearchItem, error) {
	if opts.Limit <= 0 {
		opts.Limit = docsync.DefaultSearchLimit
	}
	if opts.SnippetSize <= 0 {
		opts.SnippetSize = docsync.DefaultSnippetSize
	}
	if opts.SnippetSize > maxSnippetTokens {
		opts.SnippetSize = maxSnippetTokens
	}

	rows, err := s.SelectAll(ctx, `
		SELECT
			sections.id,
			sections.boost,
			sections.doc,
			sections.metadata,
			sections.image,
			sections.link,
			sections.level,
			docs.boost AS docBoost,
			docs.image AS docImage,
			docs.metadata AS docMetadata,
			docs.publishedAt AS docPublishedAt,
			docs.title AS docTitle,
			docs.type AS docType,
			docs.summary AS docSummary,
			docs.url AS docUrl,
			imageDocs.crawl AS imageDocCrawl,
			imageDocs.crc AS imageDocCrc,
			imageDocs.size AS imageDocSize,
			imageDocs.type AS imageDocType,
			imageDocs.url AS imageDocUrl,
			imageSections.crawl AS imageSectionCrawl,
			imageSections.crc AS imageSectionCrc,
			imageSections.url AS imageSectionUrl,
			linkSections.crawl AS linkSectionCrawl,
			linkSections.crc AS linkSectionCrc,
			linkSections.url AS linkSectionUrl,
			highlight(sections_fts, 0, ?, ?) AS title,
			snippet(sections_fts, 1, ?, ?, '...', ?) AS snippet,
			(bm25(sections_fts, 10, 1) - COALESCE(sections.boost, 0) - COALESCE(docs.boost, 0)) AS score
		FROM sections_fts
			LEFT JOIN sections ON sections.id = sections_fts.rowid
			LEFT JOIN docs ON docs.id = sections.doc
			LEFT JOIN docs AS imageDocs ON docs.image = imageDocs.id
			LEFT JOIN docs AS imageSections ON sections.image = imageSections.id
			LEFT JOIN docs AS linkSections ON sections.link = linkSections.id
		WHERE sections_fts MATCH ?
		ORDER BY score
		LIMIT ?`,
		opts.HighlightOpen, opts.HighlightClose,
		opts.HighlightOpen, opts.HighlightClose, opts.SnippetSize,
		term, opts.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]*docsync.SearchItem, 0, len(rows))
	for _, row := range rows {
		item, err := s.searchItem(ctx, row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Searcher) searchItem(ctx context.Context, row docsync.Row) (*docsync.SearchItem, error) {
	doc, err := docFromRow(row, "doc")
	if err != nil {
		return nil, err
	}
	doc.ID = rowID(row, "doc")
	doc.Image = rowImage(row, "docImage", "imageDoc")

	metadata, err := rowJSON(row, "metadata")
	if err != nil {
		return nil, err
	}

	item := &docsync.SearchItem{
		ID:       rowID(row, "id"),
		Level:    rowIntPtr(row, "level"),
		Boost:    rowFloat(row, "boost"),
		Score:    -rowFloat(row, "score"),
		Image:    rowImage(row, "image", "imageSection"),
		Metadata: metadata,
		Doc:      doc,
	}
	item.Title, _ = docsync.ExtractAnchor(rowString(row, "title"))

	if linkID, ok := rowInt64(row, "link"); ok {
		item.Link = &docsync.Link{
			ID:    linkID,
			Crawl: rowBool(row, "linkSectionCrawl"),
			CRC:   rowString(row, "linkSectionCrc"),
			URL:   rowString(row, "linkSectionUrl"),
		}
	}

	snippet, err := s.replaceLinks(ctx, rowString(row, "snippet"))
	if err != nil {
		return nil, err
	}
	if item.Snippet, err = s.render(docsync.RemoveAnchors(snippet), true); err != nil {
		return nil, err
	}

	return item, nil
}

// replaceLinks resolves "#:<id>" references against the docs table.
func (s *Searcher) replaceLinks(ctx context.Context, contents string) (string, error) {
	ids := docsync.LinkIDs(contents)
	if len(ids) == 0 {
		return contents, nil
	}

	rows, err := s.SelectAll(ctx, `SELECT id, crawl, crc, url FROM docs WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return "", err
	}

	links := make(map[int64]*docsync.Link, len(rows))
	for _, row := range rows {
		link := &docsync.Link{
			ID:    rowID(row, "id"),
			Crawl: rowBool(row, "crawl"),
			CRC:   rowString(row, "crc"),
			URL:   rowString(row, "url"),
		}
		links[link.ID] = link
	}

	return docsync.ResolveLinks(contents, links, s.normalize, s.datasetID), nil
}

// render filters and renders markdown. Fragments drop images and in-page
// anchor links.
func (s *Searcher) render(markdown string, fragment bool) (string, error) {
	filtered := docsync.FilterMarkdown(markdown, fragment, fragment)
	if s.renderer == nil {
		return filtered, nil
	}
	return s.renderer.Render(filtered)
}

// docFromRow reads the document summary columns. Columns are named with the
// given prefix ("docTitle") or unprefixed ("title") when prefix is empty.
func docFromRow(row docsync.Row, prefix string) (*docsync.Doc, error) {
	col := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + strings.ToUpper(name[:1]) + name[1:]
	}

	publishedAt, err := rowTime(row, col("publishedAt"))
	if err != nil {
		return nil, err
	}
	metadata, err := rowJSON(row, col("metadata"))
	if err != nil {
		return nil, err
	}

	return &docsync.Doc{
		ID:          rowID(row, col("id")),
		URL:         rowString(row, col("url")),
		Title:       rowString(row, col("title")),
		Summary:     rowString(row, col("summary")),
		Type:        rowString(row, col("type")),
		Size:        rowInt64Ptr(row, col("size")),
		Boost:       rowFloat(row, col("boost")),
		PublishedAt: publishedAt,
		Metadata:    metadata,
	}, nil
}
