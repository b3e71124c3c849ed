// Package chunker splits job descriptions into overlapping fixed-size
// windows, the unit of indexing and retrieval.
package chunker

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses all whitespace runs to a single space and trims.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Split cuts text into windows of at most maxChars characters, each window
// overlapping the previous by overlap characters. Offsets count runes, not
// bytes, so multibyte text never splits mid-character. The input is
// normalized first; an empty result after normalization yields nil.
// maxChars <= 0 returns the whole normalized text as a single chunk.
//
// Callers must keep overlap < maxChars; Split does not guard against
// non-terminating windows itself.
func Split(text string, maxChars, overlap int) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	if maxChars <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(len(runes), start+maxChars)
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		start = max(0, end-overlap)
	}
	return chunks
}
