package docsync

import (
	"regexp"
	"strings"
)

const ellipsis = "..."

var (
	imageRe           = regexp.MustCompile(`^!\[([^\]]*)\]\(\S*(?:\s+"([^"]*)")?\)$`)
	truncImageTitleRe = regexp.MustCompile(`\s"([^"]*)"?$`)
	imageAltRe        = regexp.MustCompile(`^!\[([^\]]*)`)
	openLinkRe        = regexp.MustCompile(`\[([^\]]+)$`)
	closedLinkRe      = regexp.MustCompile(`^\[([^\]]*)\]`)
	anchorLinkRe      = regexp.MustCompile(`\[([^\]]+)\]\(#!\d+[^)]*\)`)
)

// FilterMarkdown prepares stored markdown for rendering. Stored snippets may
// be cut in the middle of image or link markup; such paragraphs are reduced
// to their visible text. With removeImages, complete image paragraphs are
// reduced to their title. With removeAnchorLinks, links pointing at in-page
// anchors keep only their text.
func FilterMarkdown(contents string, removeImages, removeAnchorLinks bool) string {
	paragraphs := strings.Split(contents, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = filterParagraph(p, removeImages, removeAnchorLinks)
	}
	return strings.Join(paragraphs, "\n\n")
}

func filterParagraph(p string, removeImages, removeAnchorLinks bool) string {
	switch {
	case removeImages && strings.HasPrefix(p, "![") && strings.HasSuffix(p, ")"):
		if m := imageRe.FindStringSubmatch(p); m != nil {
			return m[2]
		}
		return ""
	case strings.HasPrefix(p, "![") && strings.HasSuffix(p, ellipsis):
		if m := truncImageTitleRe.FindStringSubmatch(p); m != nil {
			return m[1]
		}
		if m := imageAltRe.FindStringSubmatch(p); m != nil {
			return m[1]
		}
		return ""
	case strings.HasPrefix(p, "[") && strings.HasSuffix(p, ellipsis):
		if m := openLinkRe.FindStringSubmatch(p); m != nil {
			return m[1]
		}
		if m := closedLinkRe.FindStringSubmatch(p); m != nil {
			return m[1]
		}
		return ""
	}
	if removeAnchorLinks {
		p = anchorLinkRe.ReplaceAllString(p, "$1")
	}
	return p
}
