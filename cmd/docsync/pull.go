package main

import (
	"fmt"
	"io"
)

// Run executes the pull command.
func (c *PullCmd) Run(deps *Dependencies) error {
	d, err := register(deps, c.URL)
	if err != nil {
		return fail(deps, err)
	}

	if _, err := d.CheckForUpdates(deps.Ctx, nil); err != nil {
		return fail(deps, err)
	}
	swapped, err := d.Pull(deps.Ctx, c.Force)
	if err != nil {
		return fail(deps, err)
	}

	info := d.Info()
	return write(deps, info, func(w io.Writer) {
		switch {
		case swapped:
			fmt.Fprintf(w, "Updated %s (%s) at %s\n", info.ID, formatSize(info.Size), info.Path)
		case info.UpdateAvailable:
			fmt.Fprintf(w, "Another download of %s is in progress\n", info.ID)
		default:
			fmt.Fprintf(w, "%s is up to date\n", info.ID)
		}
	})
}
