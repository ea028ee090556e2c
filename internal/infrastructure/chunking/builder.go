package chunking

import (
	"log/slog"
	"strings"

	"github.com/finquery/finquery/internal/core/domain"
)

// Builder turns extracted pages into classified, addressable chunks.
// Build is deterministic: identical input pages reproduce identical chunk
// ids and content. One malformed table never fails the whole document.
type Builder struct {
	splitter *Splitter
	log      *slog.Logger
}

func NewBuilder(windowSize, overlap int, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		splitter: NewSplitter(windowSize, overlap),
		log:      log,
	}
}

type subIndexKey struct {
	page int
	kind domain.ChunkKind
}

func (b *Builder) Build(docName string, pages []domain.Page) ([]domain.Chunk, error) {
	blocks := SplitBlocks(joinPages(pages))
	if len(blocks) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(blocks))
	subIndex := make(map[subIndexKey]int, 8)
	next := func(page int, kind domain.ChunkKind) int {
		key := subIndexKey{page: page, kind: kind}
		idx := subIndex[key]
		subIndex[key] = idx + 1
		return idx
	}

	for _, block := range blocks {
		page := FindBlockPage(block, pages)

		if IsTableBlock(block) {
			grid, err := NormalizeTable(block)
			if err != nil {
				b.log.Warn("dropping malformed table block",
					"doc", docName,
					"page", page,
					"error", err,
				)
				continue
			}
			chunks = append(chunks, domain.NewChunk(docName, page, domain.ChunkTable, next(page, domain.ChunkTable), grid))
			continue
		}

		for _, window := range b.splitter.Split(block) {
			chunks = append(chunks, domain.NewChunk(docName, page, domain.ChunkText, next(page, domain.ChunkText), window))
		}
	}

	return chunks, nil
}

// joinPages rebuilds the document text with a structural break between
// pages so page boundaries also act as block boundaries.
func joinPages(pages []domain.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(p.Text))
	}
	return strings.Join(parts, "\n\n\n")
}
