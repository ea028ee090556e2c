package chunking

import (
	"errors"
	"strings"

	"github.com/finquery/finquery/internal/core/domain"
)

var errDegenerateTable = errors.New("degenerate table grid")

// NormalizeTable converts a space-aligned table block into an explicit
// pipe-delimited grid: header row, one dashed separator row, body rows
// padded to the widest column count. A grid with no rows or no columns
// is reported as malformed so the caller can drop the block.
func NormalizeTable(block string) (string, error) {
	lines := nonBlankLines(block)
	if len(lines) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "normalize table", errDegenerateTable)
	}

	rows := make([][]string, 0, len(lines))
	maxCols := 0
	for _, line := range lines {
		cols := splitColumns(line)
		rows = append(rows, cols)
		if len(cols) > maxCols {
			maxCols = len(cols)
		}
	}
	if maxCols == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "normalize table", errDegenerateTable)
	}

	for i, row := range rows {
		for len(row) < maxCols {
			row = append(row, "")
		}
		rows[i] = row
	}

	var b strings.Builder
	writeRow := func(row []string) {
		b.WriteString("| ")
		b.WriteString(strings.Join(row, " | "))
		b.WriteString(" |\n")
	}

	writeRow(rows[0])
	separator := make([]string, maxCols)
	for i := range separator {
		separator[i] = "---"
	}
	writeRow(separator)
	for _, row := range rows[1:] {
		writeRow(row)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
