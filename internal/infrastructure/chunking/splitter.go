package chunking

import "strings"

// Splitter cuts oversized chunk texts into overlapping windows before
// embedding. Corpus sources are usually pre-chunked, but scanned
// statutes occasionally arrive as whole sections that blow past the
// embedding model's useful context.
type Splitter struct {
	MaxChars int
	Overlap  int
}

func NewSplitter(maxChars, overlap int) *Splitter {
	if maxChars <= 0 {
		maxChars = 1200
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}
	return &Splitter{
		MaxChars: maxChars,
		Overlap:  overlap,
	}
}

// Split returns the text unchanged as a single element when it fits in
// one window. Otherwise it slides a window of MaxChars runes with the
// configured overlap, trimming whitespace at window edges.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.MaxChars {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	step := s.MaxChars - s.Overlap
	if step <= 0 {
		step = s.MaxChars
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.MaxChars
		if end > len(runes) {
			end = len(runes)
		}
		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			out = append(out, window)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
