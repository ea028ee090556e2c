package usecase

import (
	"context"
	"fmt"

	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/core/ports"
)

// ProcessDocumentUseCase is the worker pipeline: extract pages, build
// chunks, index them into the dense store and invalidate retrieval caches.
type ProcessDocumentUseCase struct {
	registry  ports.DocumentRegistry
	extractor ports.PageExtractor
	builder   ports.ChunkBuilder
	dense     ports.DenseStore
	queue     ports.MessageQueue
}

func NewProcessDocumentUseCase(
	registry ports.DocumentRegistry,
	extractor ports.PageExtractor,
	builder ports.ChunkBuilder,
	dense ports.DenseStore,
	queue ports.MessageQueue,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		registry:  registry,
		extractor: extractor,
		builder:   builder,
		dense:     dense,
		queue:     queue,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.registry.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, err := uc.pipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.registry.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	// Reindexing replaced the chunk set; cached sparse indexes are stale.
	if err := uc.queue.PublishCacheInvalidated(ctx, domain.Invalidation{
		OwnerID: doc.OwnerID,
		DocName: doc.Filename,
	}); err != nil {
		return fmt.Errorf("publish cache invalidation: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) pipeline(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.registry.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	pages, err := uc.extractor.ExtractPages(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}

	chunks, err := uc.builder.Build(doc.Filename, pages)
	if err != nil {
		return nil, fmt.Errorf("build chunks: %w", err)
	}

	// Clear any previous index first so a re-upload never merges with
	// stale chunks.
	if err := uc.dense.DeleteDocument(ctx, doc.OwnerID, doc.Filename); err != nil && !domain.IsKind(err, domain.ErrUnknownCollection) {
		return nil, fmt.Errorf("clear previous dense index: %w", err)
	}

	// A document that yields zero chunks stays queryable and returns
	// empty results; that is not a processing failure.
	if len(chunks) > 0 {
		if err := uc.dense.IndexChunks(ctx, doc.OwnerID, doc.Filename, chunks); err != nil {
			return nil, fmt.Errorf("index chunks in dense store: %w", err)
		}
	}

	if err := uc.registry.SaveProcessingResult(ctx, doc.ID, len(pages), len(chunks)); err != nil {
		return nil, fmt.Errorf("save processing result: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.registry.UpdateStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
