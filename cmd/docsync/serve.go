package main

import (
	docsyncgin "github.com/fwojciec/docsync/gin"
)

// Run executes the serve command. Datasets are downloaded before the server
// starts and refreshed in the background while it runs.
func (c *ServeCmd) Run(deps *Dependencies) error {
	for _, u := range c.URLs {
		if _, err := deps.Registry.Add(u); err != nil {
			return fail(deps, err)
		}
	}
	if err := deps.Registry.LoadAll(deps.Ctx, 0); err != nil {
		return fail(deps, err)
	}

	opts := []docsyncgin.Option{docsyncgin.WithLogger(deps.Logger)}
	if c.RawQueries {
		opts = append(opts, docsyncgin.WithRawQueries())
	}

	server := docsyncgin.NewServer(func(id string) (docsyncgin.Source, error) {
		d, err := deps.Registry.Get(id)
		if err != nil {
			return nil, err
		}
		return d, nil
	}, opts...)

	return server.ListenAndServe(deps.Ctx, c.Addr)
}
