package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/docsync/dataset"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Registry *dataset.Registry
	Format   string
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Dir      string `env:"DOCSYNC_DIR" default:"${defaultDir}" type:"path" help:"Cache directory for downloaded datasets"`
	NoRemote bool   `help:"Always download datasets instead of querying the source"`
	NoUpdate bool   `help:"Use cached datasets without checking for updates"`
	Verbose  bool   `short:"v" help:"Log progress to stderr"`
	Format   string `short:"o" enum:"text,json,yaml" default:"text" help:"Output format (text, json, yaml)"`

	List     ListCmd     `cmd:"" help:"Show the state of datasets"`
	Pull     PullCmd     `cmd:"" help:"Download a dataset if it changed"`
	Search   SearchCmd   `cmd:"" help:"Full-text search a dataset"`
	Doc      DocCmd      `cmd:"" help:"Show one document"`
	TOC      TOCCmd      `cmd:"" name:"toc" help:"Show the table of contents"`
	Entities EntitiesCmd `cmd:"" help:"Show the most frequent entities"`
	Docs     DocsCmd     `cmd:"" help:"List documents"`
	Serve    ServeCmd    `cmd:"" help:"Publish datasets and answer remote queries"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct {
	URLs []string `arg:"" name:"urls" help:"Dataset URLs"`
}

// PullCmd is the "pull" subcommand.
type PullCmd struct {
	URL   string `arg:"" name:"url" help:"Dataset URL"`
	Force bool   `short:"f" help:"Download even if the cached copy is current"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	URL         string `arg:"" name:"url" help:"Dataset URL"`
	Term        string `arg:"" help:"Search term (FTS5 query syntax)"`
	Limit       int    `short:"n" default:"10" help:"Maximum number of results"`
	SnippetSize int    `default:"32" help:"Snippet length in tokens (max 64)"`
}

// DocCmd is the "doc" subcommand.
type DocCmd struct {
	URL string `arg:"" name:"url" help:"Dataset URL"`
	ID  string `arg:"" name:"id" help:"Document ID or URL"`
}

// TOCCmd is the "toc" subcommand.
type TOCCmd struct {
	URL string `arg:"" name:"url" help:"Dataset URL"`
}

// EntitiesCmd is the "entities" subcommand.
type EntitiesCmd struct {
	URL    string  `arg:"" name:"url" help:"Dataset URL"`
	Limit  int     `short:"n" default:"20" help:"Maximum number of entities"`
	Top    bool    `help:"Only entities occurring in at least two documents"`
	DocIDs []int64 `name:"doc" help:"Restrict to these document IDs (repeatable)"`
}

// DocsCmd is the "docs" subcommand.
type DocsCmd struct {
	URL      string  `arg:"" name:"url" help:"Dataset URL"`
	Entities []int64 `name:"entity" short:"e" help:"Filter by entity ID (repeatable)"`
	Limit    int     `short:"n" default:"100" help:"Maximum number of documents"`
	Sort     string  `enum:"publishedAt,entities" default:"publishedAt" help:"Sort order (publishedAt, entities)"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	URLs       []string `arg:"" name:"urls" help:"Dataset URLs to publish"`
	Addr       string   `env:"DOCSYNC_ADDR" default:":8080" help:"Listen address"`
	RawQueries bool     `help:"Allow clients to run arbitrary read-only SQL"`
}
