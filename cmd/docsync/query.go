package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/docsync"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	searcher, err := open(deps, c.URL)
	if err != nil {
		return fail(deps, err)
	}

	items, err := searcher.Search(deps.Ctx, c.Term, docsync.SearchOptions{
		Limit:       c.Limit,
		SnippetSize: c.SnippetSize,
	})
	if err != nil {
		return fail(deps, err)
	}

	return write(deps, items, func(w io.Writer) {
		if len(items) == 0 {
			fmt.Fprintf(w, "No results for %q.\n", c.Term)
			return
		}
		for i, item := range items {
			title := item.Title
			if title == "" && item.Doc != nil {
				title = item.Doc.Title
			}
			fmt.Fprintf(w, "%d. %s (%.2f)\n", i+1, title, item.Score)
			if item.Doc != nil {
				fmt.Fprintf(w, "   %s\n", item.Doc.URL)
			}
			if snippet := strings.TrimSpace(item.Snippet); snippet != "" {
				fmt.Fprintf(w, "   %s\n", snippet)
			}
		}
	})
}

// Run executes the doc command. Binary documents are written as is.
func (c *DocCmd) Run(deps *Dependencies) error {
	searcher, err := open(deps, c.URL)
	if err != nil {
		return fail(deps, err)
	}

	doc, err := searcher.Doc(deps.Ctx, c.ID)
	if err != nil {
		return fail(deps, err)
	}

	if doc.Binary {
		_, err := io.WriteString(deps.Stdout, doc.Contents)
		return err
	}

	return write(deps, doc, func(w io.Writer) {
		if doc.Title != "" {
			fmt.Fprintf(w, "%s\n%s\n\n", doc.Title, doc.URL)
		}
		fmt.Fprintln(w, doc.Contents)
	})
}

// Run executes the toc command.
func (c *TOCCmd) Run(deps *Dependencies) error {
	searcher, err := open(deps, c.URL)
	if err != nil {
		return fail(deps, err)
	}

	toc, err := searcher.TOC(deps.Ctx)
	if err != nil {
		return fail(deps, err)
	}

	return write(deps, toc, func(w io.Writer) {
		for _, item := range toc {
			fmt.Fprintf(w, "%d. %s\n", item.ID, item.Title)
			for _, s := range item.Sections {
				level := docsync.DefaultSectionLevel
				if s.Level != nil {
					level = *s.Level
				}
				indent := strings.Repeat("  ", max(level, 1))
				if s.Anchor != "" {
					fmt.Fprintf(w, "%s%s [#%s]\n", indent, s.Title, s.Anchor)
				} else {
					fmt.Fprintf(w, "%s%s\n", indent, s.Title)
				}
			}
		}
	})
}

// Run executes the entities command.
func (c *EntitiesCmd) Run(deps *Dependencies) error {
	searcher, err := open(deps, c.URL)
	if err != nil {
		return fail(deps, err)
	}

	var entities []*docsync.Entity
	if c.Top {
		entities, err = searcher.TopEntities(deps.Ctx)
	} else {
		entities, err = searcher.Entities(deps.Ctx, c.Limit, c.DocIDs)
	}
	if err != nil {
		return fail(deps, err)
	}

	return write(deps, entities, func(w io.Writer) {
		for _, e := range entities {
			fmt.Fprintf(w, "%d  %s  %d\n", e.ID, e.Name, e.Count)
		}
	})
}

// Run executes the docs command.
func (c *DocsCmd) Run(deps *Dependencies) error {
	searcher, err := open(deps, c.URL)
	if err != nil {
		return fail(deps, err)
	}

	list, err := searcher.ListDocs(deps.Ctx, docsync.ListDocsOptions{
		EntityIDs: c.Entities,
		Limit:     c.Limit,
		SortBy:    docsync.SortOrder(c.Sort),
	})
	if err != nil {
		return fail(deps, err)
	}

	return write(deps, list, func(w io.Writer) {
		if len(list.Docs) == 0 {
			fmt.Fprintln(w, "No documents found.")
			return
		}
		for _, doc := range list.Docs {
			fmt.Fprintf(w, "%d  %s  %s\n", doc.ID, doc.Title, doc.URL)
		}
		if len(list.Entities) > 0 {
			names := make([]string, 0, len(list.Entities))
			for _, e := range list.Entities {
				names = append(names, fmt.Sprintf("%s (%d)", e.Name, e.Count))
			}
			fmt.Fprintf(w, "\nEntities: %s\n", strings.Join(names, ", "))
		}
	})
}
