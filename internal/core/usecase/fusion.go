package usecase

import (
	"sort"

	"github.com/finquery/finquery/internal/core/domain"
)

const defaultRRFK = 60

type fusedCandidate struct {
	chunk     domain.RetrievedChunk
	score     float64
	firstSeen int
}

// fuseRankedRRF merges ranked lists with Reciprocal Rank Fusion: an item
// at 0-based rank r in any list contributes 1/(k+r+1) to its running sum.
// Rank positions are rewarded instead of raw scores, so heterogeneous
// retrievers fuse without score normalization. Ties break by first
// appearance across the supplied lists, earlier list first.
func fuseRankedRRF(lists [][]domain.RetrievedChunk, rrfK int) []domain.RetrievedChunk {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate, 32)
	order := 0
	for _, list := range lists {
		for rank, chunk := range list {
			candidate, ok := acc[chunk.ID]
			if !ok {
				candidate = &fusedCandidate{chunk: chunk, firstSeen: order}
				acc[chunk.ID] = candidate
				order++
			} else {
				candidate.chunk = preferRicherChunk(candidate.chunk, chunk)
			}
			candidate.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	out := make([]*fusedCandidate, 0, len(acc))
	for _, c := range acc {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].firstSeen < out[j].firstSeen
	})

	fused := make([]domain.RetrievedChunk, 0, len(out))
	for _, c := range out {
		chunk := c.chunk
		chunk.Score = c.score
		fused = append(fused, chunk)
	}
	return fused
}

func trimCandidates(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

// preferRicherChunk keeps the first-seen result but fills in fields the
// other retriever resolved and it did not.
func preferRicherChunk(current, candidate domain.RetrievedChunk) domain.RetrievedChunk {
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if len(current.Metadata) == 0 && len(candidate.Metadata) > 0 {
		current.Metadata = candidate.Metadata
	}
	return current
}
