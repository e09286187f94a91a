package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fwojciec/docsync"
	"github.com/fwojciec/docsync/dataset"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// write prints v in the selected format. text renders the text format.
func write(deps *Dependencies, v any, text func(w io.Writer)) error {
	switch deps.Format {
	case FormatJSON:
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(deps.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(deps.Stdout)
		return nil
	}
}

// fail reports err on stderr and returns it.
func fail(deps *Dependencies, err error) error {
	fmt.Fprintf(deps.Stderr, "error: %s\n", docsync.ErrorMessage(err))
	return err
}

// register adds url to the registry and returns its dataset.
func register(deps *Dependencies, url string) (*dataset.Dataset, error) {
	if _, err := deps.Registry.Add(url); err != nil {
		return nil, err
	}
	return deps.Registry.Get(url)
}

// open loads the dataset at url and returns its query engine.
func open(deps *Dependencies, url string) (docsync.Searcher, error) {
	d, err := register(deps, url)
	if err != nil {
		return nil, err
	}
	if !d.Load(deps.Ctx) {
		return nil, d.Err()
	}
	if d.Mode() == dataset.ModeLocal {
		if _, err := os.Stat(d.Path()); err != nil {
			return nil, docsync.Errorf(docsync.ENOTFOUND, "dataset %q has not been downloaded. Run 'docsync pull %s'", d.ID(), url)
		}
	}
	return d.Searcher(), nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
