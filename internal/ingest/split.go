package ingest

import (
	"strings"
	"unicode/utf8"
)

// separators are tried in order when looking for a chunk boundary.
var separators = []string{"\n\n", "\n", " "}

// Split cuts text into chunks of at most size runes, each starting overlap
// runes before the previous one ended. Boundaries prefer paragraph breaks,
// then line breaks, then spaces, as long as that keeps the chunk at least
// half full. Whitespace-only chunks are dropped.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			end = boundary(runes, start+size/2, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		start = max(end-overlap, start+1)
	}
	return chunks
}

// boundary returns the end of the last separator inside runes[lo:hi], or hi.
func boundary(runes []rune, lo, hi int) int {
	window := string(runes[lo:hi])
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return lo + utf8.RuneCountInString(window[:i+len(sep)])
		}
	}
	return hi
}
