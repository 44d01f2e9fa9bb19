// Package chunker splits extracted text into bounded, overlapping segments
// for embedding. Overlap keeps context intact across segment edges so a
// retrieval hit near a boundary still reads coherently.
package chunker

import (
	"strings"
	"unicode/utf8"
)

type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

type Chunker struct {
	// TargetSize is the soft maximum chunk length in characters.
	TargetSize int
	// Overlap is how many trailing characters of a chunk are repeated at the
	// start of the next one.
	Overlap int
}

const (
	DefaultTargetSize = 1200
	DefaultOverlap    = 200
)

func New(targetSize, overlap int) Chunker {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 || overlap >= targetSize {
		overlap = DefaultOverlap
		if overlap >= targetSize {
			overlap = targetSize / 4
		}
	}
	return Chunker{TargetSize: targetSize, Overlap: overlap}
}

// Split produces the ordered chunk list for text. Whitespace-only input
// yields no chunks; input within TargetSize yields exactly one.
func (c Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.TargetSize {
		return []Chunk{{Index: 0, Content: text, TokenCount: estimateTokens(text)}}
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + c.TargetSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = breakPoint(text, start, end)
		}
		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				Content:    content,
				TokenCount: estimateTokens(content),
			})
		}
		if end >= len(text) {
			break
		}
		next := runeAlign(text, end-c.Overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint prefers a paragraph break, then a sentence end, then a word
// boundary, searching backwards from the hard limit.
func breakPoint(text string, start, limit int) int {
	window := text[start:limit]
	minCut := len(window) / 2

	if i := strings.LastIndex(window, "\n\n"); i > minCut {
		return start + i + 2
	}
	for _, sep := range []string{". ", ".\n", "! ", "? "} {
		if i := strings.LastIndex(window, sep); i > minCut {
			return start + i + len(sep)
		}
	}
	if i := strings.LastIndexAny(window, " \t\n"); i > minCut {
		return start + i + 1
	}
	// No usable boundary in the window (dense text without ASCII whitespace,
	// e.g. CJK). Never cut mid-rune.
	if cut := runeAlign(text, limit); cut > start {
		return cut
	}
	_, size := utf8.DecodeRuneInString(text[start:])
	return start + size
}

// runeAlign backs i up to the start of the rune it points into.
func runeAlign(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// estimateTokens approximates the model tokenizer: ~4 characters per token,
// never below 1 for non-empty content.
func estimateTokens(s string) int {
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}
