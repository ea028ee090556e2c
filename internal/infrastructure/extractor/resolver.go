// Package extractor dispatches a stored document to the extractor that
// understands its format.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/core/ports"
)

type Resolver struct {
	pdf      ports.PageExtractor
	xlsx     ports.PageExtractor
	fallback ports.PageExtractor
}

func NewResolver(pdf, xlsx, fallback ports.PageExtractor) *Resolver {
	return &Resolver{pdf: pdf, xlsx: xlsx, fallback: fallback}
}

func (r *Resolver) ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	switch {
	case doc.MimeType == "application/pdf", hasExt(doc.Filename, ".pdf"):
		return r.pdf.ExtractPages(ctx, doc)
	case strings.Contains(doc.MimeType, "spreadsheetml"),
		hasExt(doc.Filename, ".xlsx"), hasExt(doc.Filename, ".xlsm"):
		return r.xlsx.ExtractPages(ctx, doc)
	default:
		return r.fallback.ExtractPages(ctx, doc)
	}
}

func hasExt(filename, ext string) bool {
	return strings.EqualFold(filepath.Ext(filename), ext)
}
