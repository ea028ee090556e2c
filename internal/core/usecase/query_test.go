package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/finquery/finquery/internal/core/domain"
)

type fakeRetriever struct {
	results []domain.RetrievedChunk
	err     error
}

func (f *fakeRetriever) Retrieve(context.Context, string, []string, string, int) ([]domain.RetrievedChunk, error) {
	return f.results, f.err
}
func (f *fakeRetriever) Invalidate(string, string) {}
func (f *fakeRetriever) Reset()                    {}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (f *fakeGenerator) GenerateAnswer(context.Context, string, []domain.RetrievedChunk) (string, error) {
	f.calls++
	return f.answer, f.err
}

func TestAnswerWithoutContextSkipsGeneration(t *testing.T) {
	generator := &fakeGenerator{answer: "should not be used"}
	uc := NewQueryUseCase(&fakeRetriever{}, generator)

	answer, err := uc.Answer(context.Background(), "owner", nil, "what was revenue?", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Text != noContextAnswer {
		t.Fatalf("expected the no-context answer, got %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", answer.Sources)
	}
	if generator.calls != 0 {
		t.Fatalf("generator must not run without context")
	}
}

func TestAnswerBuildsSourcesFromMetadata(t *testing.T) {
	retriever := &fakeRetriever{
		results: []domain.RetrievedChunk{
			{
				ID:      "report.pdf::page_2::table_0",
				Content: "| Revenue | 1,234.5 |",
				Metadata: map[string]any{
					"doc_name": "report.pdf", "page": 2, "kind": "table", "sub_index": 0,
				},
				Score: 0.032,
			},
		},
	}
	uc := NewQueryUseCase(retriever, &fakeGenerator{answer: "Revenue was 1,234.5."})

	answer, err := uc.Answer(context.Background(), "owner", []string{"report.pdf"}, "what was revenue?", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Text != "Revenue was 1,234.5." {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(answer.Sources))
	}

	src := answer.Sources[0]
	if src.Filename != "report.pdf" || src.Page != 2 || src.Kind != "table" {
		t.Fatalf("unexpected source: %+v", src)
	}
}

func TestAnswerPropagatesRetrievalError(t *testing.T) {
	uc := NewQueryUseCase(&fakeRetriever{err: errors.New("scope lookup failed")}, &fakeGenerator{})

	if _, err := uc.Answer(context.Background(), "owner", nil, "q", 5); err == nil {
		t.Fatalf("expected retrieval error to propagate")
	}
}
