package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finrag/internal/adapter/cache"
	"finrag/internal/domain"
	"finrag/internal/port"
)

// QueryUseCase answers natural-language questions: embed the question,
// search the vector store, assemble a source-tagged context from the top
// matches, and hand it to the generation model.
type QueryUseCase struct {
	embedder  port.Embedder
	store     port.VectorStore
	generator port.Generator
	answers   *cache.AnswerCache
	topK      int
	logger    *zap.Logger
}

// NewQueryUseCase creates a query use case. The answer cache may be nil;
// defaultTopK is used when a caller passes topK <= 0.
func NewQueryUseCase(
	embedder port.Embedder,
	store port.VectorStore,
	generator port.Generator,
	answers *cache.AnswerCache,
	defaultTopK int,
	logger *zap.Logger,
) *QueryUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryUseCase{
		embedder:  embedder,
		store:     store,
		generator: generator,
		answers:   answers,
		topK:      defaultTopK,
		logger:    logger,
	}
}

// Answer runs a query. Embedding failure and an empty store are fatal;
// a generation failure is carried inside the returned Answer because
// retrieval itself succeeded.
func (u *QueryUseCase) Answer(ctx context.Context, question string, topK int) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if topK <= 0 {
		topK = u.topK
	}

	if u.answers != nil {
		if cached, ok := u.answers.Get(question, topK); ok {
			u.logger.Debug("answer cache hit", zap.String("question", question))
			return &cached, nil
		}
	}

	count, err := u.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check store: %w", err)
	}
	if count == 0 {
		return nil, domain.ErrNoDocuments
	}

	vector, err := u.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := u.store.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	prompt := buildPrompt(question, matches)
	answer := domain.Answer{
		SourcesUsed:     uniqueSources(matches),
		NumSources:      len(matches),
		RelevanceScores: scoresOf(matches),
	}

	content, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		u.logger.Warn("generation failed", zap.Error(err))
		answer.GenerationErr = err.Error()
	} else {
		answer.Content = content
	}

	if u.answers != nil && answer.GenerationErr == "" {
		u.answers.Put(question, topK, answer)
	}
	return &answer, nil
}

// buildPrompt assembles the context block, each match tagged with its
// source path in the order returned (highest relevance first), followed by
// the instruction that keeps the model inside the supplied context.
func buildPrompt(question string, matches []domain.QueryMatch) string {
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, fmt.Sprintf("[Source: %s]\n%s", m.SourcePath, m.Content))
	}
	context := strings.Join(blocks, "\n\n")

	return "You are a helpful financial analyst assistant. Answer the question based ONLY on the provided context. " +
		"Format your response with the following structure:\n" +
		"- Use **Bold Headers** for key sections.\n" +
		"- Use bullet points for lists.\n" +
		"- Keep it concise and professional.\n\n" +
		"If the context doesn't contain enough information to answer the question, say so.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Question: " + question + "\n\n" +
		"Answer:"
}

// uniqueSources returns the distinct source paths in first-seen order.
func uniqueSources(matches []domain.QueryMatch) []string {
	seen := make(map[string]bool, len(matches))
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m.SourcePath] {
			seen[m.SourcePath] = true
			sources = append(sources, m.SourcePath)
		}
	}
	return sources
}

func scoresOf(matches []domain.QueryMatch) []float64 {
	scores := make([]float64, len(matches))
	for i, m := range matches {
		scores[i] = m.Score
	}
	return scores
}
