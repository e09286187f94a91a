package mock

import "github.com/fwojciec/docsync"

var _ docsync.Renderer = (*Renderer)(nil)

// Renderer is a mock implementation of docsync.Renderer.
type Renderer struct {
	RenderFn func(markdown string) (string, error)
}

func (r *Renderer) Render(markdown string) (string, error) {
	return r.RenderFn(markdown)
}
