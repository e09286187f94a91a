package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docsync"
	"github.com/fwojciec/docsync/dataset"
	"github.com/fwojciec/docsync/goldmark"
	docsynchttp "github.com/fwojciec/docsync/http"
	docsyncslog "github.com/fwojciec/docsync/slog"
	"github.com/fwojciec/docsync/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Registry of the datasets named on the command line. Set by Run.
	Registry *dataset.Registry
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Close stops background refresh of all datasets. Cached files are kept.
func (m *Main) Close() error {
	if m.Registry != nil {
		m.Registry.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	parser, err := kong.New(cli,
		kong.Name("docsync"),
		kong.Description("Keep local replicas of documentation datasets and query them"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Vars{"defaultDir": defaultDir()},
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'docsync --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	// Serving publishes local files, so it never delegates queries.
	allowRemote := !cli.NoRemote && !strings.HasPrefix(kongCtx.Command(), "serve")

	fetcher := docsyncslog.NewLoggingFetcher(docsynchttp.NewFetcher(), logger)
	renderer := goldmark.NewRenderer()

	m.Registry = dataset.NewRegistry(dataset.RegistryConfig{
		Dir:         cli.Dir,
		AllowRemote: allowRemote,
		AutoUpdate:  !cli.NoUpdate,
		Lock:        true,
		Fetchers: map[string]docsync.Fetcher{
			"http":  fetcher,
			"https": fetcher,
		},
		Local: func(id, path string) docsync.Searcher {
			return docsyncslog.NewLoggingSearcher(sqlite.NewSearcher(path, renderer, sqlite.WithDatasetID(id)), id, logger)
		},
		Remote: func(id, url string) docsync.Searcher {
			return docsyncslog.NewLoggingSearcher(docsynchttp.NewRemoteSearcher(url), id, logger)
		},
		Logger: logger,
	})
	defer m.Close()

	deps.Logger = logger
	deps.Registry = m.Registry
	deps.Format = cli.Format

	return kongCtx.Run(deps)
}

// defaultDir returns ~/.docsync, or .docsync when the home directory is
// unknown.
func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docsync"
	}
	return filepath.Join(home, ".docsync")
}
