package chunking

import (
	"regexp"
	"strings"

	"github.com/finquery/finquery/internal/core/domain"
)

// Numeric anchors: integers with at least four digits, or currency-like
// decimal numbers. Anchors tie a block back to the raw page it came from.
var anchorPattern = regexp.MustCompile(`(?:\d{4,}|\$?\d[\d,]*\.\d+)`)

const (
	maxAnchors     = 10
	minAnchorMatch = 3
)

// FindBlockPage attributes a block to a source page by counting how many
// of the block's numeric anchors appear in each page's raw text. The page
// with the most matches wins, provided at least minAnchorMatch anchors
// match; otherwise the page stays unresolved.
func FindBlockPage(block string, pages []domain.Page) int {
	anchors := anchorPattern.FindAllString(block, maxAnchors)
	if len(anchors) < minAnchorMatch {
		return domain.PageUnresolved
	}

	bestPage := domain.PageUnresolved
	bestScore := 0
	for _, page := range pages {
		score := 0
		for _, anchor := range anchors {
			if strings.Contains(page.Text, anchor) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestPage = page.Number
		}
	}

	if bestScore < minAnchorMatch {
		return domain.PageUnresolved
	}
	return bestPage
}
