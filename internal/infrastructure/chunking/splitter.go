package chunking

import "strings"

const (
	defaultWindowSize    = 1000
	defaultWindowOverlap = 200
)

// Splitter cuts prose into overlapping fixed-size rune windows. Empty
// windows after trimming are dropped silently.
type Splitter struct {
	WindowSize int
	Overlap    int
}

func NewSplitter(windowSize, overlap int) *Splitter {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= windowSize {
		overlap = windowSize / 4
	}
	return &Splitter{
		WindowSize: windowSize,
		Overlap:    overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.WindowSize - s.Overlap
	if step <= 0 {
		step = s.WindowSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.WindowSize
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
