// Package text paginates long-form chat content into server-acceptable
// pages, splitting preferentially on paragraph, sentence, word and finally
// rune boundaries.
package text

import "strings"

// Blob is a long-form message that must be paginated before sending.
type Blob struct {
	Title   string
	Content string
}

// Paginate splits content into ordered pages of at most max bytes. The
// title is prepended to the first page. max values too small to hold
// anything still produce per-rune pages rather than an empty result.
func Paginate(title, content string, max int) []string {
	if max <= 0 {
		max = 1
	}
	body := content
	if title != "" {
		body = title + "\n\n" + content
	}
	if len(body) <= max {
		return []string{body}
	}

	var pages []string
	var page strings.Builder
	flush := func() {
		if page.Len() > 0 {
			pages = append(pages, page.String())
			page.Reset()
		}
	}

	// Chunks keep their trailing separators, so pages are assembled by
	// plain concatenation.
	for _, chunk := range splitToFit(body, max) {
		if page.Len()+len(chunk) > max {
			flush()
		}
		page.WriteString(chunk)
	}
	flush()
	return pages
}

// splitToFit breaks s into units no longer than max, descending through
// boundary types until each unit fits.
func splitToFit(s string, max int) []string {
	var out []string
	for _, para := range splitAfter(s, "\n\n") {
		if len(para) <= max {
			out = append(out, para)
			continue
		}
		for _, sentence := range splitAfter(para, ". ") {
			if len(sentence) <= max {
				out = append(out, sentence)
				continue
			}
			for _, word := range splitAfter(sentence, " ") {
				if len(word) <= max {
					out = append(out, word)
					continue
				}
				out = append(out, splitRunes(word, max)...)
			}
		}
	}
	return out
}

// splitAfter splits on sep but keeps sep attached to the preceding piece,
// so reassembled pages read naturally.
func splitAfter(s, sep string) []string {
	parts := strings.SplitAfter(s, sep)
	// SplitAfter can leave a trailing empty piece.
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

func splitRunes(s string, max int) []string {
	var out []string
	runes := []rune(s)
	var cur strings.Builder
	for _, r := range runes {
		if cur.Len()+len(string(r)) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
