package ports

import (
	"context"
	"io"

	"github.com/finquery/finquery/internal/core/domain"
)

// DocumentRegistry persists owner-scoped document state.
type DocumentRegistry interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByName(ctx context.Context, ownerID, docName string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveProcessingResult(ctx context.Context, id string, pages, chunks int) error
	DeleteByName(ctx context.Context, ownerID, docName string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue carries ingestion events and cache invalidations.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishCacheInvalidated(ctx context.Context, inv domain.Invalidation) error
	SubscribeCacheInvalidated(ctx context.Context, handler func(context.Context, domain.Invalidation) error) error
}

// PageExtractor turns a stored document into ordered pages of plain text.
type PageExtractor interface {
	ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error)
}

// ChunkBuilder converts extracted pages into typed, addressable chunks.
// Must be deterministic: identical input bytes produce identical chunks.
type ChunkBuilder interface {
	Build(docName string, pages []domain.Page) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DenseStore is the external vector-similarity collaborator. Search scores
// are raw similarities. A missing collection surfaces as
// domain.ErrUnknownCollection, never as a generic transport error.
type DenseStore interface {
	IndexChunks(ctx context.Context, ownerID string, docName string, chunks []domain.Chunk) error
	Search(ctx context.Context, ownerID, docName, query string, limit int) ([]domain.RetrievedChunk, error)
	FetchAll(ctx context.Context, ownerID, docName string) ([]domain.Chunk, error)
	DeleteDocument(ctx context.Context, ownerID, docName string) error
}

// SparseIndex is a built, immutable keyword index over one document's
// chunk set. Search scores are raw term weights.
type SparseIndex interface {
	Search(query string, k int) []domain.RetrievedChunk
	Len() int
}

// SparseIndexFactory builds a sparse index over a full chunk set.
type SparseIndexFactory func(chunks []domain.Chunk) SparseIndex

// RetrievalObserver receives cache and build instrumentation events.
type RetrievalObserver interface {
	SparseIndexBuilt(docName string)
	CacheHit()
	CacheMiss()
}

// AnswerGenerator creates the final user-facing answer from fused context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
}
