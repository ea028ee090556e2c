package domain

import "strings"

// RetrievedChunk is a ranked retrieval result. Score semantics differ by
// stage: raw similarity from the dense store, raw term weight from the
// sparse index, reciprocal-rank sum after fusion. Scores from different
// stages are not comparable.
type RetrievedChunk struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

func RetrievedFromChunk(c Chunk, score float64) RetrievedChunk {
	return RetrievedChunk{
		ID:       c.ID,
		Content:  c.Content,
		Metadata: c.Metadata(),
		Score:    score,
	}
}

// DocName extracts the document name prefix from the chunk id.
func (c RetrievedChunk) DocName() string {
	if name, ok := c.Metadata["doc_name"].(string); ok && name != "" {
		return name
	}
	if idx := strings.Index(c.ID, "::"); idx > 0 {
		return c.ID[:idx]
	}
	return c.ID
}

func (c RetrievedChunk) Page() int {
	switch v := c.Metadata["page"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return PageUnresolved
	}
}

func (c RetrievedChunk) Kind() string {
	if kind, ok := c.Metadata["kind"].(string); ok {
		return kind
	}
	return string(ChunkText)
}

// Invalidation tells retrieval caches that a document changed.
type Invalidation struct {
	OwnerID string `json:"owner_id"`
	DocName string `json:"doc_name"`
}

type Source struct {
	Filename string  `json:"filename"`
	Page     int     `json:"page"`
	Kind     string  `json:"kind"`
	Score    float64 `json:"score"`
}

type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}
