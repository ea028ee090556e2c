package usecase

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/finquery/finquery/internal/core/domain"
)

type fakeStorage struct {
	saved   map[string][]byte
	removed []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: make(map[string][]byte)}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.saved[key])), nil
}

func (f *fakeStorage) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type fakeQueue struct {
	ingested      []string
	invalidations []domain.Invalidation
}

func (f *fakeQueue) PublishDocumentIngested(_ context.Context, documentID string) error {
	f.ingested = append(f.ingested, documentID)
	return nil
}

func (f *fakeQueue) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *fakeQueue) PublishCacheInvalidated(_ context.Context, inv domain.Invalidation) error {
	f.invalidations = append(f.invalidations, inv)
	return nil
}

func (f *fakeQueue) SubscribeCacheInvalidated(context.Context, func(context.Context, domain.Invalidation) error) error {
	return nil
}

type recordingRegistry struct {
	fakeRegistry
	created []domain.Document
	deleted []string
	stored  *domain.Document
}

func (r *recordingRegistry) Create(_ context.Context, doc *domain.Document) error {
	r.created = append(r.created, *doc)
	return nil
}

func (r *recordingRegistry) GetByName(context.Context, string, string) (*domain.Document, error) {
	if r.stored == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get by name", domain.ErrDocumentNotFound)
	}
	return r.stored, nil
}

func (r *recordingRegistry) DeleteByName(_ context.Context, _, docName string) error {
	r.deleted = append(r.deleted, docName)
	return nil
}

func TestUploadRequiresOwner(t *testing.T) {
	uc := NewIngestDocumentUseCase(&recordingRegistry{}, newFakeStorage(), &fakeQueue{}, &fakeDense{})

	_, err := uc.Upload(context.Background(), "  ", "report.pdf", "application/pdf", strings.NewReader("x"))
	if err == nil {
		t.Fatalf("expected error for blank owner")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid-input kind, got %v", err)
	}
}

func TestUploadStoresRegistersAndQueues(t *testing.T) {
	registry := &recordingRegistry{}
	storage := newFakeStorage()
	queue := &fakeQueue{}
	uc := NewIngestDocumentUseCase(registry, storage, queue, &fakeDense{})

	doc, err := uc.Upload(context.Background(), "owner-1", "Q3 report.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.OwnerID != "owner-1" || doc.Filename != "Q3 report.pdf" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", doc.Status)
	}
	if len(storage.saved) != 1 {
		t.Fatalf("expected one stored object, got %d", len(storage.saved))
	}
	if strings.Contains(doc.StoragePath, " ") {
		t.Fatalf("storage key must be sanitized, got %q", doc.StoragePath)
	}
	if len(registry.created) != 1 {
		t.Fatalf("expected one registration, got %d", len(registry.created))
	}
	if len(queue.ingested) != 1 || queue.ingested[0] != doc.ID {
		t.Fatalf("expected ingestion event for %s, got %v", doc.ID, queue.ingested)
	}
}

func TestDeleteRemovesEverythingAndInvalidates(t *testing.T) {
	registry := &recordingRegistry{
		stored: &domain.Document{ID: "id-1", OwnerID: "owner-1", Filename: "report.pdf", StoragePath: "id-1_report.pdf"},
	}
	storage := newFakeStorage()
	queue := &fakeQueue{}
	uc := NewIngestDocumentUseCase(registry, storage, queue, &fakeDense{})

	if err := uc.Delete(context.Background(), "owner-1", "report.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(registry.deleted) != 1 || registry.deleted[0] != "report.pdf" {
		t.Fatalf("expected registry delete, got %v", registry.deleted)
	}
	if len(storage.removed) != 1 || storage.removed[0] != "id-1_report.pdf" {
		t.Fatalf("expected stored file removal, got %v", storage.removed)
	}
	if len(queue.invalidations) != 1 {
		t.Fatalf("expected one invalidation, got %d", len(queue.invalidations))
	}
	if inv := queue.invalidations[0]; inv.OwnerID != "owner-1" || inv.DocName != "report.pdf" {
		t.Fatalf("unexpected invalidation: %+v", inv)
	}
}

func TestDeleteUnknownDocumentFails(t *testing.T) {
	uc := NewIngestDocumentUseCase(&recordingRegistry{}, newFakeStorage(), &fakeQueue{}, &fakeDense{})

	err := uc.Delete(context.Background(), "owner-1", "missing.pdf")
	if err == nil {
		t.Fatalf("expected error for unknown document")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}

func TestSanitizeFilenameStripsUnsafeRunes(t *testing.T) {
	got := sanitizeFilename("../секрет report (final).pdf")
	if strings.ContainsAny(got, "/ ()") {
		t.Fatalf("unsafe runes must be replaced, got %q", got)
	}
	if got == "" {
		t.Fatalf("sanitized name must not be empty")
	}
}
