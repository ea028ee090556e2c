package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/core/ports"
)

const defaultTopK = 5

// indexKey is the structured cache key; owner scope and document name are
// kept separate so names containing separators cannot collide.
type indexKey struct {
	OwnerID string
	DocName string
}

func (k indexKey) String() string {
	return k.OwnerID + "\x00" + k.DocName
}

// RetrieveUseCase is the retrieval orchestrator: it owns the cache of
// built sparse indexes and fuses keyword and dense search results into a
// single ranked list. Sparse indexes are immutable once cached; the cache
// is only written after a full successful build, so a cancelled or failed
// build never leaks partial state.
type RetrieveUseCase struct {
	dense    ports.DenseStore
	registry ports.DocumentRegistry
	newIndex ports.SparseIndexFactory
	observer ports.RetrievalObserver
	topK     int
	rrfK     int
	log      *slog.Logger

	mu    sync.RWMutex
	cache map[indexKey]ports.SparseIndex
	group singleflight.Group
}

func NewRetrieveUseCase(
	dense ports.DenseStore,
	registry ports.DocumentRegistry,
	newIndex ports.SparseIndexFactory,
	observer ports.RetrievalObserver,
	topK int,
	rrfK int,
	log *slog.Logger,
) *RetrieveUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}
	if log == nil {
		log = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &RetrieveUseCase{
		dense:    dense,
		registry: registry,
		newIndex: newIndex,
		observer: observer,
		topK:     topK,
		rrfK:     rrfK,
		log:      log,
		cache:    make(map[indexKey]ports.SparseIndex),
	}
}

// Retrieve is the single entry point consumed by the answer-generation
// layer. docNames == nil means all documents owned by the scope.
func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	ownerID string,
	docNames []string,
	query string,
	n int,
) ([]domain.RetrievedChunk, error) {
	if n <= 0 {
		n = uc.topK
	}

	if docNames == nil {
		docs, err := uc.registry.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("list documents for scope: %w", err)
		}
		docNames = make([]string, 0, len(docs))
		for _, doc := range docs {
			docNames = append(docNames, doc.Filename)
		}
	}
	if len(docNames) == 0 {
		return nil, nil
	}

	if len(docNames) == 1 {
		return uc.RetrieveSingle(ctx, ownerID, docNames[0], query, n)
	}
	return uc.RetrieveMulti(ctx, ownerID, docNames, query, n)
}

// RetrieveSingle runs hybrid retrieval for one document: 2n sparse and 2n
// dense candidates fetched in parallel, fused with RRF, top n returned.
// When the sparse index cannot be built the dense results stand alone.
func (uc *RetrieveUseCase) RetrieveSingle(
	ctx context.Context,
	ownerID, docName, query string,
	n int,
) ([]domain.RetrievedChunk, error) {
	if n <= 0 {
		n = uc.topK
	}
	candidates := 2 * n

	var (
		denseHits  []domain.RetrievedChunk
		sparseHits []domain.RetrievedChunk
		sparseOK   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := uc.dense.Search(gctx, ownerID, docName, query, candidates)
		if err != nil {
			if domain.IsKind(err, domain.ErrUnknownCollection) {
				return nil
			}
			return fmt.Errorf("dense search %q: %w", docName, err)
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		index, err := uc.sparseIndex(gctx, ownerID, docName)
		if err != nil {
			// Index build failure degrades to dense-only, never fails
			// the request.
			uc.log.Warn("sparse index unavailable, using dense-only results",
				"doc", docName, "error", err)
			return nil
		}
		if index == nil {
			return nil
		}
		sparseHits = index.Search(query, candidates)
		sparseOK = true
		return nil
	})
	if err := g.Wait(); err != nil {
		if sparseOK {
			uc.log.Warn("dense search failed, using sparse-only results",
				"doc", docName, "error", err)
		} else {
			return nil, err
		}
	}

	if !sparseOK {
		return trimCandidates(denseHits, n), nil
	}
	fused := fuseRankedRRF([][]domain.RetrievedChunk{denseHits, sparseHits}, uc.rrfK)
	return trimCandidates(fused, n), nil
}

// RetrieveMulti fans out RetrieveSingle per document, merges by score and
// returns the top n. Failures are isolated per document: they reduce the
// candidate set, never abort the query. The merged ordering compares
// fused rank scores against raw dense similarities, a best-effort
// approximation kept from the original behavior.
func (uc *RetrieveUseCase) RetrieveMulti(
	ctx context.Context,
	ownerID string,
	docNames []string,
	query string,
	n int,
) ([]domain.RetrievedChunk, error) {
	if n <= 0 {
		n = uc.topK
	}

	var (
		mu  sync.Mutex
		all []domain.RetrievedChunk
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, docName := range docNames {
		g.Go(func() error {
			results, err := uc.RetrieveSingle(gctx, ownerID, docName, query, n)
			if err != nil {
				uc.log.Warn("document retrieval failed, skipping",
					"doc", docName, "error", err)
				return nil
			}
			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	return trimCandidates(all, n), nil
}

// sparseIndex returns the cached index for the key, building it at most
// once across concurrent callers. A nil index with nil error means the
// document has no chunks and dense-only retrieval should be used.
func (uc *RetrieveUseCase) sparseIndex(ctx context.Context, ownerID, docName string) (ports.SparseIndex, error) {
	key := indexKey{OwnerID: ownerID, DocName: docName}

	uc.mu.RLock()
	cached, ok := uc.cache[key]
	uc.mu.RUnlock()
	if ok {
		uc.observer.CacheHit()
		return cached, nil
	}
	uc.observer.CacheMiss()

	v, err, _ := uc.group.Do(key.String(), func() (any, error) {
		uc.mu.RLock()
		cached, ok := uc.cache[key]
		uc.mu.RUnlock()
		if ok {
			return cached, nil
		}

		chunks, err := uc.dense.FetchAll(ctx, ownerID, docName)
		if err != nil {
			if domain.IsKind(err, domain.ErrUnknownCollection) {
				return nil, nil
			}
			return nil, fmt.Errorf("fetch chunks for sparse index: %w", err)
		}
		if len(chunks) == 0 {
			return nil, nil
		}

		index := uc.newIndex(chunks)
		if err := ctx.Err(); err != nil {
			// Cancelled mid-build: discard, never cache partial work.
			return nil, err
		}

		uc.mu.Lock()
		uc.cache[key] = index
		uc.mu.Unlock()
		uc.observer.SparseIndexBuilt(docName)
		return index, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(ports.SparseIndex), nil
}

// Invalidate drops the cached index for one document. Upload and delete
// collaborators must call this after any mutation; the orchestrator never
// observes document state directly.
func (uc *RetrieveUseCase) Invalidate(ownerID, docName string) {
	uc.mu.Lock()
	delete(uc.cache, indexKey{OwnerID: ownerID, DocName: docName})
	uc.mu.Unlock()
}

// Reset drops every cached index.
func (uc *RetrieveUseCase) Reset() {
	uc.mu.Lock()
	uc.cache = make(map[indexKey]ports.SparseIndex)
	uc.mu.Unlock()
}

type noopObserver struct{}

func (noopObserver) SparseIndexBuilt(string) {}
func (noopObserver) CacheHit()               {}
func (noopObserver) CacheMiss()              {}
