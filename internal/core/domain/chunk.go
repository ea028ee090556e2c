package domain

import "fmt"

type ChunkKind string

const (
	ChunkText  ChunkKind = "text"
	ChunkTable ChunkKind = "table"
)

// PageUnresolved marks chunks whose source page could not be attributed.
const PageUnresolved = 0

// Page is one unit of raw extracted document text with its 1-based index.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chunk is the minimal retrievable unit of document content. Its ID is
// derived from (doc name, page, kind, sub index), so re-processing the
// same bytes reproduces the same IDs.
type Chunk struct {
	ID       string    `json:"id"`
	Content  string    `json:"content"`
	Kind     ChunkKind `json:"kind"`
	Page     int       `json:"page"`
	DocName  string    `json:"doc_name"`
	SubIndex int       `json:"sub_index"`
}

func ChunkID(docName string, page int, kind ChunkKind, subIndex int) string {
	return fmt.Sprintf("%s::page_%d::%s_%d", docName, page, kind, subIndex)
}

func NewChunk(docName string, page int, kind ChunkKind, subIndex int, content string) Chunk {
	return Chunk{
		ID:       ChunkID(docName, page, kind, subIndex),
		Content:  content,
		Kind:     kind,
		Page:     page,
		DocName:  docName,
		SubIndex: subIndex,
	}
}

func (c Chunk) Metadata() map[string]any {
	return map[string]any{
		"doc_name":  c.DocName,
		"page":      c.Page,
		"kind":      string(c.Kind),
		"sub_index": c.SubIndex,
	}
}
