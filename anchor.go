package docsync

import (
	"regexp"
	"strconv"
	"strings"
)

// Inline placeholders embedded in stored section and document text.
var (
	// anchorRe matches an anchor definition such as "{#!42}".
	anchorRe = regexp.MustCompile(`\{#!(\d+)\}`)

	// titleAnchorRe also consumes one leading space so "Intro {#!42}" strips to "Intro".
	titleAnchorRe = regexp.MustCompile(`\s?\{#(!\d+)\}`)

	// linkRe matches a cross-document reference such as "#:7".
	linkRe = regexp.MustCompile(`#:(\d+)`)
)

// ExtractAnchor splits a section title into its display title and the
// anchor embedded in it. The anchor is empty when the title has none.
func ExtractAnchor(title string) (display, anchor string) {
	if m := titleAnchorRe.FindStringSubmatch(title); m != nil {
		anchor = m[1]
	}
	return titleAnchorRe.ReplaceAllString(title, ""), anchor
}

// RemoveAnchors strips every anchor definition.
func RemoveAnchors(s string) string {
	return anchorRe.ReplaceAllString(s, "")
}

// ReplaceAnchors turns every anchor definition into an inline anchor element.
func ReplaceAnchors(s string) string {
	return anchorRe.ReplaceAllString(s, `<span id="!$1"></span>`)
}

// LinkIDs returns the document IDs referenced by cross-document links, in
// order of first appearance.
func LinkIDs(s string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, m := range linkRe.FindAllStringSubmatch(s, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ResolveLinks replaces every "#:<id>" reference with the URL of the
// referenced document. The normalizer, when set, rewrites the URL. References
// to unknown documents are left untouched.
func ResolveLinks(s string, links map[int64]*Link, normalize URLNormalizer, datasetID string) string {
	matches := linkRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	cursor := 0
	for _, m := range matches {
		b.WriteString(s[cursor:m[0]])
		cursor = m[1]

		id, err := strconv.ParseInt(s[m[2]:m[3]], 10, 64)
		link := links[id]
		switch {
		case err != nil || link == nil:
			b.WriteString(s[m[0]:m[1]])
		case normalize != nil:
			b.WriteString(normalize(link, datasetID))
		case link.URL != "":
			b.WriteString(link.URL)
		default:
			b.WriteString(s[m[0]:m[1]])
		}
	}
	b.WriteString(s[cursor:])
	return b.String()
}
