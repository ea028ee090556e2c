package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/finquery/finquery/internal/core/domain"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestCollectionNameSanitization(t *testing.T) {
	if got := collectionName("owner-1", "Q3 Report.pdf"); got != "owner-1_q3_report" {
		t.Fatalf("unexpected collection name %q", got)
	}
	if got := collectionName("owner-1", "отчет.pdf"); !strings.HasPrefix(got, "owner-1_") {
		t.Fatalf("non-ascii name must still be owner scoped, got %q", got)
	}

	long := collectionName("owner-1", strings.Repeat("a", 100)+".pdf")
	if len(long) > 63 {
		t.Fatalf("collection name must be capped at 63 chars, got %d", len(long))
	}
}

func TestSearchMapsMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":"collection not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, fakeEmbedder{}, ClientOptions{})

	_, err := client.Search(context.Background(), "owner-1", "missing.pdf", "query", 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrUnknownCollection) {
		t.Fatalf("expected unknown-collection kind, got %v", err)
	}
}

func TestSearchReturnsPayloadBackedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/points/search") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"score": 0.87,
					"payload": map[string]any{
						"chunk_id": "report.pdf::page_2::table_0",
						"text":     "| Revenue | 1,234.5 |",
						"doc_name": "report.pdf",
						"page":     2,
						"kind":     "table",
					},
				},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, fakeEmbedder{}, ClientOptions{})

	results, err := client.Search(context.Background(), "owner-1", "report.pdf", "revenue", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.ID != "report.pdf::page_2::table_0" || r.Score != 0.87 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Page() != 2 || r.Kind() != "table" {
		t.Fatalf("metadata not mapped: %+v", r.Metadata)
	}
}

func TestReindexAfterDeleteRecreatesCollection(t *testing.T) {
	var mu sync.Mutex
	collections := map[string]bool{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		name, isPoints := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/collections/"), "/points")
		switch {
		case r.Method == http.MethodPut && isPoints:
			if !collections[name] {
				http.Error(w, `{"status":"collection not found"}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
		case r.Method == http.MethodPut:
			collections[name] = true
			_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
		case r.Method == http.MethodDelete:
			delete(collections, name)
			_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL, fakeEmbedder{}, ClientOptions{})
	ctx := context.Background()
	chunks := []domain.Chunk{domain.NewChunk("report.pdf", 1, domain.ChunkText, 0, "revenue grew")}

	if err := client.IndexChunks(ctx, "owner-1", "report.pdf", chunks); err != nil {
		t.Fatalf("first index: %v", err)
	}
	if err := client.DeleteDocument(ctx, "owner-1", "report.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Re-indexing after a delete must re-create the collection instead of
	// upserting into a collection the server no longer has.
	if err := client.IndexChunks(ctx, "owner-1", "report.pdf", chunks); err != nil {
		t.Fatalf("reindex after delete: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !collections[collectionName("owner-1", "report.pdf")] {
		t.Fatalf("collection was not re-created, have %v", collections)
	}
}

func TestFetchAllRestoresIndexingOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Points arrive in arbitrary scroll order; seq restores build order.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points": []map[string]any{
					{"payload": map[string]any{"chunk_id": "a::page_1::text_1", "seq": 1, "kind": "text", "page": 1, "doc_name": "a", "sub_index": 1, "text": "second"}},
					{"payload": map[string]any{"chunk_id": "a::page_1::text_0", "seq": 0, "kind": "text", "page": 1, "doc_name": "a", "sub_index": 0, "text": "first"}},
				},
				"next_page_offset": nil,
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, fakeEmbedder{}, ClientOptions{})

	chunks, err := client.FetchAll(context.Background(), "owner-1", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "a::page_1::text_0" || chunks[1].ID != "a::page_1::text_1" {
		t.Fatalf("chunks must come back in build order: %s, %s", chunks[0].ID, chunks[1].ID)
	}
	if chunks[0].Content != "first" || chunks[0].Kind != domain.ChunkText {
		t.Fatalf("payload not mapped: %+v", chunks[0])
	}
}
