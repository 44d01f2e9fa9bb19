package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"homebase/internal/llm"
	"homebase/internal/models"
	"homebase/internal/repositories"
)

const DefaultTopK = 5

// RetrievalService answers similarity queries over a party's ready chunks.
// It is best-effort context: an empty corpus or an empty query yields an
// empty result, not an error.
type RetrievalService struct {
	Docs     repositories.DocumentRepository
	Embedder llm.EmbeddingClient
}

func NewRetrievalService(docs repositories.DocumentRepository, embedder llm.EmbeddingClient) *RetrievalService {
	return &RetrievalService{Docs: docs, Embedder: embedder}
}

func (s *RetrievalService) Search(ctx context.Context, partyID int64, query string, topK int) ([]models.ChunkMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := s.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrDependency, err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	matches, err := s.Docs.SearchChunks(ctx, partyID, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	log.Printf("[retrieval][ok] party=%d top_k=%d hits=%d", partyID, topK, len(matches))
	return matches, nil
}
