package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/core/ports"
	"github.com/finquery/finquery/internal/infrastructure/resilience"
)

const scrollBatchSize = 256

// Client is the dense-store adapter. Each (owner, document) pair gets its
// own collection; query embedding is delegated to the external embedder so
// callers only ever hand over query strings.
type Client struct {
	baseURL    string
	embedder   ports.Embedder
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

type ClientOptions struct {
	RequestsPerSecond  float64
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, embedder ports.Embedder, options ClientOptions) *Client {
	limit := rate.Inf
	if options.RequestsPerSecond > 0 {
		limit = rate.Limit(options.RequestsPerSecond)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) IndexChunks(ctx context.Context, ownerID, docName string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks))
	}

	collection := collectionName(ownerID, docName)
	if err := c.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		payload := chunk.Metadata()
		payload["chunk_id"] = chunk.ID
		payload["text"] = chunk.Content
		payload["seq"] = i
		points = append(points, point{
			// Deterministic point id so re-indexing upserts in place.
			ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunk.ID)).String(),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	var resp json.RawMessage
	return c.do(ctx, "qdrant.upsert", http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", collection),
		map[string]any{"points": points}, &resp)
}

func (c *Client) Search(ctx context.Context, ownerID, docName, query string, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	queryVector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err = c.do(ctx, "qdrant.search", http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", collectionName(ownerID, docName)),
		map[string]any{
			"vector":       queryVector,
			"limit":        limit,
			"with_payload": true,
		}, &searchResp)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			ID:       getString(r.Payload, "chunk_id"),
			Content:  getString(r.Payload, "text"),
			Metadata: chunkMetadata(r.Payload),
			Score:    r.Score,
		})
	}
	return out, nil
}

// FetchAll scrolls the whole collection and rebuilds the chunk set in its
// original indexing order; it is the source the sparse index builds from.
func (c *Client) FetchAll(ctx context.Context, ownerID, docName string) ([]domain.Chunk, error) {
	collection := collectionName(ownerID, docName)

	type scrollPoint struct {
		Payload map[string]any `json:"payload"`
	}
	type record struct {
		seq   int
		chunk domain.Chunk
	}
	var (
		records []record
		offset  any
	)
	for {
		body := map[string]any{
			"limit":        scrollBatchSize,
			"with_payload": true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points         []scrollPoint `json:"points"`
				NextPageOffset any           `json:"next_page_offset"`
			} `json:"result"`
		}
		err := c.do(ctx, "qdrant.scroll", http.MethodPost,
			fmt.Sprintf("/collections/%s/points/scroll", collection), body, &scrollResp)
		if err != nil {
			return nil, err
		}

		for _, p := range scrollResp.Result.Points {
			records = append(records, record{
				seq: getInt(p.Payload, "seq"),
				chunk: domain.Chunk{
					ID:       getString(p.Payload, "chunk_id"),
					Content:  getString(p.Payload, "text"),
					Kind:     domain.ChunkKind(getString(p.Payload, "kind")),
					Page:     getInt(p.Payload, "page"),
					DocName:  getString(p.Payload, "doc_name"),
					SubIndex: getInt(p.Payload, "sub_index"),
				},
			})
		}

		if scrollResp.Result.NextPageOffset == nil || len(scrollResp.Result.Points) == 0 {
			break
		}
		offset = scrollResp.Result.NextPageOffset
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].seq < records[j].seq })
	chunks := make([]domain.Chunk, 0, len(records))
	for _, r := range records {
		chunks = append(chunks, r.chunk)
	}
	return chunks, nil
}

func (c *Client) DeleteDocument(ctx context.Context, ownerID, docName string) error {
	collection := collectionName(ownerID, docName)

	// Forget the collection before issuing the delete: even if the
	// request fails client-side after the server dropped it, the next
	// index must go through ensureCollection again.
	c.ensureMu.Lock()
	delete(c.ensured, collection)
	c.ensureMu.Unlock()

	var resp json.RawMessage
	return c.do(ctx, "qdrant.delete_collection", http.MethodDelete,
		fmt.Sprintf("/collections/%s", collection), nil, &resp)
}

func (c *Client) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensured == nil {
		c.ensured = make(map[string]int)
	}
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	var resp json.RawMessage
	err := c.do(ctx, "qdrant.ensure_collection", http.MethodPut,
		fmt.Sprintf("/collections/%s", collection),
		map[string]any{
			"vectors": map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		}, &resp)
	if err != nil && !isConflict(err) {
		return err
	}

	c.ensureMu.Lock()
	c.ensured[collection] = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload, out any) error {
	call := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reqBody io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("marshal %s body: %w", operation, err)
			}
			reqBody = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return newStatusError(operation, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	return translateStatusError(err)
}

// collectionName derives a valid Qdrant collection name from the owner
// scope and document name: alphanumeric plus underscores/hyphens, at most
// 63 characters, lowercase.
func collectionName(ownerID, docName string) string {
	name := docName
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	raw := ownerID + "_" + name
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, raw)
	if mapped == "" || !isAlphaNum(rune(mapped[0])) {
		mapped = "doc_" + mapped
	}
	if len(mapped) > 63 {
		mapped = mapped[:63]
	}
	return strings.ToLower(mapped)
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func chunkMetadata(payload map[string]any) map[string]any {
	return map[string]any{
		"doc_name":  getString(payload, "doc_name"),
		"page":      getInt(payload, "page"),
		"kind":      getString(payload, "kind"),
		"sub_index": getInt(payload, "sub_index"),
	}
}

func getString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
