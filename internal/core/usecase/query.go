package usecase

import (
	"context"
	"fmt"

	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/core/ports"
)

const noContextAnswer = "I couldn't find relevant information in the documents to answer your question."

type QueryUseCase struct {
	retriever ports.Retriever
	generator ports.AnswerGenerator
}

func NewQueryUseCase(retriever ports.Retriever, generator ports.AnswerGenerator) *QueryUseCase {
	return &QueryUseCase{
		retriever: retriever,
		generator: generator,
	}
}

// Answer retrieves fused context for the question and hands it to the
// external generation model. Empty retrieval is an empty answer, not an
// error.
func (uc *QueryUseCase) Answer(
	ctx context.Context,
	ownerID string,
	docNames []string,
	question string,
	limit int,
) (*domain.Answer, error) {
	chunks, err := uc.retriever.Retrieve(ctx, ownerID, docNames, question, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	if len(chunks) == 0 {
		return &domain.Answer{Text: noContextAnswer, Sources: []domain.Source{}}, nil
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: buildSources(chunks),
	}, nil
}

func buildSources(chunks []domain.RetrievedChunk) []domain.Source {
	sources := make([]domain.Source, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, domain.Source{
			Filename: chunk.DocName(),
			Page:     chunk.Page(),
			Kind:     chunk.Kind(),
			Score:    chunk.Score,
		})
	}
	return sources
}
