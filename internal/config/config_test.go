package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_FUSION_K", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ChunkSize != 1000 {
		t.Fatalf("expected default chunk size 1000, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 200 {
		t.Fatalf("expected default chunk overlap 200, got %d", cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.RAGFusionK != 60 {
		t.Fatalf("expected default fusion k 60, got %d", cfg.RAGFusionK)
	}
	if cfg.NATSIngestSubject != "documents.ingest" {
		t.Fatalf("expected default ingest subject, got %q", cfg.NATSIngestSubject)
	}
	if cfg.NATSInvalidateSubject != "retrieval.invalidate" {
		t.Fatalf("expected default invalidate subject, got %q", cfg.NATSInvalidateSubject)
	}
}

func TestLoadAppliesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunk_size: 800\nrag_top_k: 7\nqdrant_rps: 12.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("QDRANT_RPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ChunkSize != 800 {
		t.Fatalf("expected chunk size 800 from file, got %d", cfg.ChunkSize)
	}
	if cfg.RAGTopK != 7 {
		t.Fatalf("expected top k 7 from file, got %d", cfg.RAGTopK)
	}
	if cfg.QdrantRPS != 12.5 {
		t.Fatalf("expected qdrant rps 12.5 from file, got %f", cfg.QdrantRPS)
	}
	// Untouched fields keep their defaults.
	if cfg.ChunkOverlap != 200 {
		t.Fatalf("expected default overlap 200, got %d", cfg.ChunkOverlap)
	}
}

func TestEnvOverridesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: 800\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "1200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ChunkSize != 1200 {
		t.Fatalf("expected env to beat file, got %d", cfg.ChunkSize)
	}
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unreadable config file")
	}
}
