package ingest

import (
	"fmt"
	"strings"
)

// separator is a split boundary. keep is how many runes of sep stay at the end
// of the chunk that closes on it (the period of ". ").
type separator struct {
	sep  []rune
	keep int
}

// ordered from paragraph down to word; a hard cut is the last resort
var separators = []separator{
	{sep: []rune("\n\n")},
	{sep: []rune("\n")},
	{sep: []rune(". "), keep: 1},
	{sep: []rune(" ")},
}

// Splitter cuts text into windows of at most chunkSize runes. Every window after
// the first starts with the last overlap runes of the one before it.
type Splitter struct {
	chunkSize int
	overlap   int
}

func NewSplitter(chunkSize int, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

func (s *Splitter) ChunkSize() int { return s.chunkSize }
func (s *Splitter) Overlap() int   { return s.overlap }

// SplitText is deterministic: the same text always yields the same chunks.
func (s *Splitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		if len(runes)-start <= s.chunkSize {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		end := s.cutPoint(runes, start)
		chunks = append(chunks, string(runes[start:end]))
		start = end - s.overlap
	}
}

// cutPoint picks the end of the window starting at start. The search stays in the
// back half of the window and past the overlap so every step moves forward.
func (s *Splitter) cutPoint(runes []rune, start int) int {
	hi := start + s.chunkSize
	lo := start + max(s.overlap+1, s.chunkSize/2)

	for _, sp := range separators {
		for cut := hi; cut >= lo; cut-- {
			if separatorAt(runes, cut-sp.keep, sp.sep) {
				return cut
			}
		}
	}
	return hi
}

func separatorAt(runes []rune, at int, sep []rune) bool {
	if at < 0 || at+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[at+i] != r {
			return false
		}
	}
	return true
}
