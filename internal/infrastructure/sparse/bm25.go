// Package sparse implements the per-document keyword retriever: a BM25
// index built once over a document's full chunk set and immutable after
// construction.
package sparse

import (
	"math"
	"sort"
	"strings"

	"github.com/finquery/finquery/internal/core/domain"
)

const (
	k1 = 1.5
	b  = 0.75
)

type Index struct {
	chunks   []domain.Chunk
	termFreq []map[string]int
	docFreq  map[string]int
	lengths  []int
	avgLen   float64
}

// New builds an index over the given chunk set. Tokenization is lowercase
// whitespace splitting, no stemming and no stop words: determinism over
// recall. An index over an empty chunk set always returns empty results.
func New(chunks []domain.Chunk) *Index {
	ix := &Index{
		chunks:   chunks,
		termFreq: make([]map[string]int, len(chunks)),
		docFreq:  make(map[string]int, 256),
		lengths:  make([]int, len(chunks)),
	}

	totalLen := 0
	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			ix.docFreq[term]++
		}
		ix.termFreq[i] = tf
		ix.lengths[i] = len(tokens)
		totalLen += len(tokens)
	}
	if len(chunks) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(chunks))
	}
	return ix
}

func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Search ranks all chunks against the query and returns the top k as
// retrieval results carrying raw BM25 scores. Ordering is deterministic:
// descending score, ties broken by original chunk order.
func (ix *Index) Search(query string, k int) []domain.RetrievedChunk {
	if k <= 0 || ix.Len() == 0 || ix.avgLen == 0 {
		return nil
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	n := float64(ix.Len())
	scores := make([]float64, ix.Len())
	for _, term := range terms {
		df, ok := ix.docFreq[term]
		if !ok {
			continue
		}
		idf := math.Log(1.0 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i := range ix.chunks {
			tf := float64(ix.termFreq[i][term])
			if tf == 0 {
				continue
			}
			norm := 1.0 - b + b*float64(ix.lengths[i])/ix.avgLen
			scores[i] += idf * (tf * (k1 + 1.0)) / (tf + k1*norm)
		}
	}

	order := make([]int, ix.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, c int) bool {
		return scores[order[a]] > scores[order[c]]
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]domain.RetrievedChunk, 0, k)
	for _, i := range order[:k] {
		out = append(out, domain.RetrievedFromChunk(ix.chunks[i], scores[i]))
	}
	return out
}

// Tokenize lowercases and splits on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
