package chunking

import (
	"math"
	"strings"
	"unicode"
)

// SplitBlocks splits extracted document text into logical blocks separated
// by structural breaks (double blank lines).
func SplitBlocks(text string) []string {
	parts := strings.Split(text, "\n\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// auxiliary/verb forms counted by the prose veto
var proseVerbWords = map[string]struct{}{
	"was": {}, "were": {}, "has": {}, "may": {}, "is": {},
	"approved": {}, "commenced": {},
}

// IsTableBlock classifies a block as tabular data. Prose signals always
// override layout signals: table detection from flattened text has no
// ground truth, and a false positive is lossier than a false negative.
func IsTableBlock(block string) bool {
	if isProseLike(block) {
		return false
	}
	return passesTableLayout(block)
}

// isProseLike detects flowing narrative text broken by layout
// line-wrapping. Acts as a veto before layout-based table detection.
func isProseLike(block string) bool {
	lines := nonBlankLines(block)
	if len(lines) < 3 {
		return false
	}

	flowingBreaks := 0
	for i := 0; i < len(lines)-1; i++ {
		if !endsSentence(lines[i]) && startsLower(lines[i+1]) {
			flowingBreaks++
		}
	}
	if flowingBreaks >= 2 {
		return true
	}

	verbHits := 0
	for _, w := range words(strings.ToLower(block)) {
		if _, ok := proseVerbWords[w]; ok {
			verbHits++
			continue
		}
		if strings.HasSuffix(w, "ed") || strings.HasSuffix(w, "ing") {
			verbHits++
		}
	}
	return verbHits >= 3
}

// passesTableLayout is the pure layout-based table detector: consistent
// column counts, digits on most rows, regular line lengths.
func passesTableLayout(block string) bool {
	lines := nonBlankLines(block)
	if len(lines) < 3 {
		return false
	}

	columnCounts := make(map[int]struct{}, 4)
	numericLines := 0
	for _, line := range lines {
		columnCounts[len(splitColumns(line))] = struct{}{}
		if strings.ContainsFunc(line, unicode.IsDigit) {
			numericLines++
		}
	}

	// Header row is allowed to differ from the body.
	if len(columnCounts) > 2 {
		return false
	}

	required := int(0.6 * float64(len(lines)))
	if required < 3 {
		required = 3
	}
	if numericLines < required {
		return false
	}

	mean := 0.0
	for _, line := range lines {
		mean += float64(len(line))
	}
	mean /= float64(len(lines))

	variance := 0.0
	for _, line := range lines {
		d := float64(len(line)) - mean
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(len(lines)))

	return stdev <= 0.5*mean
}

// splitColumns splits a line on runs of two or more spaces.
func splitColumns(line string) []string {
	fields := make([]string, 0, 8)
	var b strings.Builder
	spaces := 0
	flush := func() {
		if b.Len() > 0 {
			fields = append(fields, b.String())
			b.Reset()
		}
	}
	for _, r := range line {
		if r == ' ' || r == '\t' {
			spaces++
			continue
		}
		if spaces >= 2 {
			flush()
		} else if spaces == 1 && b.Len() > 0 {
			b.WriteRune(' ')
		}
		spaces = 0
		b.WriteRune(r)
	}
	flush()
	if len(fields) == 0 {
		return []string{""}
	}
	return fields
}

func nonBlankLines(block string) []string {
	raw := strings.Split(block, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func endsSentence(line string) bool {
	if line == "" {
		return false
	}
	switch line[len(line)-1] {
	case '.', ':', ';':
		return true
	default:
		return false
	}
}

func startsLower(line string) bool {
	for _, r := range line {
		return r >= 'a' && r <= 'z'
	}
	return false
}

func words(s string) []string {
	out := make([]string, 0, 32)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
