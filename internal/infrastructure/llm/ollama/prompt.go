package ollama

import (
	"fmt"
	"strings"

	"github.com/finquery/finquery/internal/core/domain"
)

// buildAnswerPrompt labels every context block with its document, page and
// kind so the model can cite exact locations in financial filings.
func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	var contextBuilder strings.Builder
	for _, chunk := range chunks {
		contextBuilder.WriteString(sourceTag(chunk))
		contextBuilder.WriteString("\n")
		contextBuilder.WriteString(chunk.Content)
		contextBuilder.WriteString("\n\n")
	}

	return fmt.Sprintf(`You are a financial document analyst. Answer the question using only the context below.
Cite the source document and page for every figure you use.
If the context does not contain the answer, say so directly instead of guessing.
Preserve exact numbers, units and currency symbols from the context.

Question:
%s

Context:
%s`, question, contextBuilder.String())
}

func sourceTag(chunk domain.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("[Source: ")
	b.WriteString(chunk.DocName())

	if page := chunk.Page(); page != domain.PageUnresolved {
		fmt.Fprintf(&b, ", page %d", page)
	}
	if chunk.Kind() == string(domain.ChunkTable) {
		b.WriteString(" (Table)")
	}
	b.WriteString("]")
	return b.String()
}
