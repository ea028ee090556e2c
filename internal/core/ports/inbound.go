package ports

import (
	"context"
	"io"

	"github.com/finquery/finquery/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, ownerID, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Delete(ctx context.Context, ownerID, docName string) error
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// Retriever is the single retrieval entry point consumed by the
// answer-generation layer. docNames == nil means all documents of the owner.
type Retriever interface {
	Retrieve(ctx context.Context, ownerID string, docNames []string, query string, n int) ([]domain.RetrievedChunk, error)
	Invalidate(ownerID, docName string)
	Reset()
}

// QueryService answers natural-language questions over retrieved chunks.
type QueryService interface {
	Answer(ctx context.Context, ownerID string, docNames []string, question string, limit int) (*domain.Answer, error)
}

// DocumentReader is the inbound read model for document metadata.
type DocumentReader interface {
	GetByName(ctx context.Context, ownerID, docName string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error)
}
