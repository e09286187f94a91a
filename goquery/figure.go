package goquery

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/docsync"
)

// Figures wraps every paragraph that holds nothing but a single image into a
// figure element. The image title, when present, becomes the caption.
// The input is an HTML fragment and so is the output.
func Figures(fragment string) (string, error) {
	if !strings.Contains(fragment, "<img") {
		return fragment, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", docsync.Errorf(docsync.EINVALID, "failed to parse HTML: %v", err)
	}

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		img := p.Children()
		if img.Length() != 1 || !img.Is("img") || strings.TrimSpace(p.Text()) != "" {
			return
		}

		imgHTML, err := goquery.OuterHtml(img)
		if err != nil {
			return
		}

		var b strings.Builder
		b.WriteString("<figure>")
		b.WriteString(imgHTML)
		if title, ok := img.Attr("title"); ok && title != "" {
			b.WriteString("<figcaption>")
			b.WriteString(html.EscapeString(title))
			b.WriteString("</figcaption>")
		}
		b.WriteString("</figure>")
		p.ReplaceWithHtml(b.String())
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", docsync.Errorf(docsync.EINTERNAL, "failed to serialize HTML: %v", err)
	}
	return out, nil
}
