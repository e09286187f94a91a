// Package goldmark renders dataset markdown into HTML.
package goldmark

import (
	"bytes"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/fwojciec/docsync"
	"github.com/fwojciec/docsync/goquery"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Compile-time interface verification.
var _ docsync.Renderer = (*Renderer)(nil)

// Renderer converts markdown into HTML. Raw HTML in the source is passed
// through, fenced code blocks are highlighted with CSS classes, and
// standalone images become figures.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a Renderer with GitHub Flavored Markdown enabled.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
				),
			),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Render converts markdown to HTML.
func (r *Renderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", docsync.Errorf(docsync.EINTERNAL, "failed to render markdown: %v", err)
	}
	return goquery.Figures(buf.String())
}
