package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/core/ports"
)

type IngestDocumentUseCase struct {
	registry ports.DocumentRegistry
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	dense    ports.DenseStore
}

func NewIngestDocumentUseCase(
	registry ports.DocumentRegistry,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	dense ports.DenseStore,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		registry: registry,
		storage:  storage,
		queue:    queue,
		dense:    dense,
	}
}

// Upload stores the source file, registers document metadata under the
// owner scope and queues it for asynchronous processing. Re-uploading a
// name the owner already has replaces the previous registration; the
// worker republishes a cache invalidation once reindexing finishes.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	ownerID, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("owner id is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.registry.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("register document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// Delete removes a document from the registry and the dense store, then
// broadcasts a cache invalidation so every orchestrator drops its index.
func (uc *IngestDocumentUseCase) Delete(ctx context.Context, ownerID, docName string) error {
	doc, err := uc.registry.GetByName(ctx, ownerID, docName)
	if err != nil {
		return fmt.Errorf("fetch document for delete: %w", err)
	}

	if err := uc.registry.DeleteByName(ctx, ownerID, docName); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}

	if err := uc.dense.DeleteDocument(ctx, ownerID, docName); err != nil && !domain.IsKind(err, domain.ErrUnknownCollection) {
		return fmt.Errorf("delete dense collection: %w", err)
	}

	if err := uc.storage.Remove(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("remove stored file: %w", err)
	}

	if err := uc.queue.PublishCacheInvalidated(ctx, domain.Invalidation{OwnerID: ownerID, DocName: docName}); err != nil {
		return fmt.Errorf("publish cache invalidation: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
