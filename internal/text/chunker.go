// Package text splits extracted document text into bounded passages for
// embedding. Splitting is pure and deterministic: identical input and
// options always produce the identical chunk sequence, so re-ingesting a
// document is reproducible.
package text

import (
	"fmt"

	"campaignlab/internal/rag"
)

// Options controls chunk sizing. TargetSize is the upper bound on chunk
// length in bytes; Overlap is the number of trailing bytes each chunk
// shares with the next one to preserve context across a split.
type Options struct {
	TargetSize int
	Overlap    int
}

// Chunk is a contiguous substring of the source text. Start/End are byte
// offsets into the original text, so raw[Start:End] == Text. Consecutive
// chunks satisfy next.Start == prev.End - Overlap, which means the source
// reconstructs by concatenating chunks with the overlap prefix removed.
type Chunk struct {
	Text  string
	Start int
	End   int
}

// Split cuts raw into chunks of at most opts.TargetSize bytes. It prefers
// natural boundaries (line breaks, sentence ends) found within a tolerance
// window before the size limit, and falls back to a hard cut so no chunk
// ever exceeds the bound. Empty input yields no chunks and no error; input
// shorter than TargetSize yields exactly one chunk.
func Split(raw string, opts Options) ([]Chunk, error) {
	if opts.TargetSize <= 0 || opts.Overlap < 0 || opts.Overlap >= opts.TargetSize {
		return nil, fmt.Errorf("%w: target_size=%d overlap=%d", rag.ErrInvalidConfiguration, opts.TargetSize, opts.Overlap)
	}
	if raw == "" {
		return nil, nil
	}
	if len(raw) <= opts.TargetSize {
		return []Chunk{{Text: raw, Start: 0, End: len(raw)}}, nil
	}

	// How far back from the hard limit we are willing to move to land on
	// a sentence or line boundary.
	tolerance := opts.TargetSize / 4

	var chunks []Chunk
	start := 0
	for start < len(raw) {
		end := start + opts.TargetSize
		if end >= len(raw) {
			end = len(raw)
		} else {
			if cut := snapToBoundary(raw, start, end, tolerance); cut > start+opts.Overlap {
				end = cut
			} else {
				end = alignToRune(raw, start+opts.Overlap+1, end)
			}
		}
		chunks = append(chunks, Chunk{Text: raw[start:end], Start: start, End: end})
		if end == len(raw) {
			break
		}
		start = end - opts.Overlap
	}
	return chunks, nil
}

// snapToBoundary scans backwards from end (exclusive) for the latest natural
// break inside the tolerance window. It returns the cut position, or 0 if
// the window contains no boundary.
func snapToBoundary(s string, start, end, tolerance int) int {
	low := end - tolerance
	if low < start {
		low = start
	}
	for i := end; i > low; i-- {
		if s[i-1] == '\n' {
			return i
		}
		switch s[i-1] {
		case '.', '!', '?':
			if i < len(s) && (s[i] == ' ' || s[i] == '\n' || s[i] == '\t') {
				return i
			}
		}
	}
	return 0
}

// alignToRune moves a hard cut left while it would split a UTF-8 sequence,
// without going below floor.
func alignToRune(s string, floor, cut int) int {
	for cut > floor && cut < len(s) && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return cut
}
