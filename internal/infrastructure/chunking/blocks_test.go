package chunking

import "testing"

const alignedGrid = "Metric          2022        2023\n" +
	"Revenue         1,234.5     2,345.6\n" +
	"Net income      234.1       345.2\n" +
	"Total assets    9,876.0     8,765.0"

func TestSplitBlocksDropsEmptySegments(t *testing.T) {
	blocks := SplitBlocks("first block\n\n\n   \n\n\nsecond block")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %q", len(blocks), blocks)
	}
	if blocks[0] != "first block" || blocks[1] != "second block" {
		t.Fatalf("unexpected blocks: %q", blocks)
	}
}

func TestIsTableBlockAcceptsAlignedNumericGrid(t *testing.T) {
	if !IsTableBlock(alignedGrid) {
		t.Fatalf("expected aligned numeric grid to classify as table")
	}
}

func TestIsTableBlockRejectsProse(t *testing.T) {
	prose := "The company was incorporated in 2019 and has grown steadily.\n" +
		"Revenue growth was driven by expanding subscriptions and pricing changes.\n" +
		"Management has approved a buyback program that commenced in March."
	if IsTableBlock(prose) {
		t.Fatalf("expected narrative prose to classify as text")
	}
}

func TestProseVetoOverridesTableLayout(t *testing.T) {
	// Wrapped prose that happens to satisfy every layout heuristic: aligned
	// column gaps, digits on each row, regular line lengths.
	block := "the board approved  1,250.0  shares and the grant was\n" +
		"expected to vest over  2024  subject to conditions that were\n" +
		"commenced during  2023  following the annual meeting plan"

	if !passesTableLayout(block) {
		t.Fatalf("fixture must pass the layout detector for the veto to be exercised")
	}
	if IsTableBlock(block) {
		t.Fatalf("prose veto must win over layout signals")
	}
}

func TestIsTableBlockRejectsShortBlocks(t *testing.T) {
	if IsTableBlock("Revenue  1,234.5\nCosts  234.1") {
		t.Fatalf("blocks under three lines must never classify as table")
	}
}

func TestSplitColumnsOnDoubleSpaceRuns(t *testing.T) {
	cols := splitColumns("Net income      234.1   345.2")
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d: %q", len(cols), cols)
	}
	if cols[0] != "Net income" {
		t.Fatalf("single spaces must stay inside a column, got %q", cols[0])
	}
}
