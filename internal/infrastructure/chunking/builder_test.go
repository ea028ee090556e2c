package chunking

import (
	"reflect"
	"strings"
	"testing"

	"github.com/finquery/finquery/internal/core/domain"
)

func fixturePages() []domain.Page {
	return []domain.Page{
		{Number: 1, Text: "The company was incorporated in 2019 and has grown steadily. Revenue was driven by expanding subscriptions." +
			"\n\n\n" +
			"Management has approved continued investment in the reporting platform during the year."},
		{Number: 2, Text: "Revenue was 1,234.5 against 2,345.6 prior year; net income was 234.1 versus 345.2, total assets 9,876.0 and 8,765.0.\n\n\n" + alignedGrid},
	}
}

func TestBuildClassifiesTextAndTableChunks(t *testing.T) {
	builder := NewBuilder(1000, 200, nil)

	chunks, err := builder.Build("report.pdf", fixturePages())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var tables, texts []domain.Chunk
	for _, c := range chunks {
		switch c.Kind {
		case domain.ChunkTable:
			tables = append(tables, c)
		case domain.ChunkText:
			texts = append(texts, c)
		}
	}

	if len(tables) != 1 {
		t.Fatalf("expected exactly one table chunk, got %d", len(tables))
	}
	if len(texts) != 3 {
		t.Fatalf("expected three text chunks, got %d", len(texts))
	}

	table := tables[0]
	if table.Page != 2 {
		t.Fatalf("expected table attributed to page 2, got %d", table.Page)
	}
	if table.ID != "report.pdf::page_2::table_0" {
		t.Fatalf("unexpected table chunk id %q", table.ID)
	}
	if !strings.Contains(table.Content, "| Revenue | 1,234.5 | 2,345.6 |") {
		t.Fatalf("table chunk must carry the normalized grid, got:\n%s", table.Content)
	}
}

func TestBuildSubIndexCountsPerPageAndKind(t *testing.T) {
	builder := NewBuilder(1000, 200, nil)

	chunks, err := builder.Build("report.pdf", fixturePages())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both page-1 paragraphs carry too few anchors to resolve a page, so
	// they share the unresolved bucket and count up within it.
	var unresolvedTexts []string
	for _, c := range chunks {
		if c.Kind == domain.ChunkText && c.Page == domain.PageUnresolved {
			unresolvedTexts = append(unresolvedTexts, c.ID)
		}
	}
	if len(unresolvedTexts) != 2 {
		t.Fatalf("expected 2 unresolved text chunks, got %d: %v", len(unresolvedTexts), unresolvedTexts)
	}
	if unresolvedTexts[0] != "report.pdf::page_0::text_0" || unresolvedTexts[1] != "report.pdf::page_0::text_1" {
		t.Fatalf("sub index must increment within (page, kind): %v", unresolvedTexts)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	builder := NewBuilder(1000, 200, nil)

	first, err := builder.Build("report.pdf", fixturePages())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := builder.Build("report.pdf", fixturePages())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuilding from identical pages must reproduce identical chunks")
	}
}

func TestBuildEmptyPagesYieldsNoChunks(t *testing.T) {
	builder := NewBuilder(1000, 200, nil)

	chunks, err := builder.Build("empty.pdf", []domain.Page{{Number: 1, Text: "   "}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplitterOverlappingWindows(t *testing.T) {
	s := NewSplitter(10, 4)

	windows := s.Split("abcdefghijklmnop")
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d: %q", len(windows), windows)
	}
	if windows[0] != "abcdefghij" || windows[1] != "ghijklmnop" {
		t.Fatalf("unexpected windows: %q", windows)
	}
}
