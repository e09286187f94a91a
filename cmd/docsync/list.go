package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fwojciec/docsync/dataset"
)

// Run executes the list command. Datasets that fail to load are listed
// with their error.
func (c *ListCmd) Run(deps *Dependencies) error {
	for _, u := range c.URLs {
		if _, err := deps.Registry.Add(u); err != nil {
			return fail(deps, err)
		}
	}

	if err := deps.Registry.LoadAll(deps.Ctx, 0); err != nil {
		deps.Logger.Warn("some datasets failed to load", "err", err)
	}

	infos := deps.Registry.List()
	return write(deps, infos, func(w io.Writer) {
		for _, info := range infos {
			printInfo(w, info)
		}
	})
}

func printInfo(w io.Writer, info dataset.Info) {
	mode := string(info.Mode)
	if mode == "" {
		mode = "unloaded"
	}
	fmt.Fprintf(w, "%s  %s  %s  %s\n", info.ID, mode, formatSize(info.Size), info.URL)
	if title := info.Metadata["title"]; title != "" {
		fmt.Fprintf(w, "  title: %s\n", title)
	}
	if info.Mode == dataset.ModeLocal {
		fmt.Fprintf(w, "  path: %s\n", info.Path)
	}
	if info.ModTime != nil {
		fmt.Fprintf(w, "  modified: %s\n", info.ModTime.Format(time.RFC3339))
	}
	if info.UpdateAvailable {
		fmt.Fprintln(w, "  update available")
	}
	if info.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", info.Error)
	}
}
