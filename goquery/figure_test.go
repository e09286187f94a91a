package goquery_test

import (
	"strings"
	"testing"

	gq "github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/docsync/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFigures(t *testing.T) {
	t.Parallel()

	t.Run("wraps standalone image with caption", func(t *testing.T) {
		t.Parallel()

		out, err := goquery.Figures(`<p><img src="a.png" alt="A" title="Diagram &amp; notes"></p>`)
		require.NoError(t, err)

		doc, err := gq.NewDocumentFromReader(strings.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 0, doc.Find("p").Length())
		assert.Equal(t, 1, doc.Find("figure > img[src='a.png']").Length())
		assert.Equal(t, "Diagram & notes", doc.Find("figure > figcaption").Text())
	})

	t.Run("wraps image without caption", func(t *testing.T) {
		t.Parallel()

		out, err := goquery.Figures(`<p><img src="a.png"></p>`)
		require.NoError(t, err)

		doc, err := gq.NewDocumentFromReader(strings.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 1, doc.Find("figure > img").Length())
		assert.Equal(t, 0, doc.Find("figcaption").Length())
	})

	t.Run("leaves inline images alone", func(t *testing.T) {
		t.Parallel()

		out, err := goquery.Figures(`<p>Look <img src="a.png" title="x"> here</p>`)
		require.NoError(t, err)

		doc, err := gq.NewDocumentFromReader(strings.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 0, doc.Find("figure").Length())
		assert.Equal(t, 1, doc.Find("p > img").Length())
	})

	t.Run("returns fragments without images unchanged", func(t *testing.T) {
		t.Parallel()

		in := "<p>plain</p>\n"
		out, err := goquery.Figures(in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}
