package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Omkar399/project-z/internal/vectorstore"
)

// Service implements Engine on top of a fact extractor and a vector store.
type Service struct {
	store     vectorstore.Store
	extractor FactExtractor
	logger    *zap.Logger
}

// NewService creates a memory engine from its collaborators.
func NewService(store vectorstore.Store, extractor FactExtractor, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		extractor: extractor,
		logger:    logger,
	}, nil
}

// Add extracts facts from the conversation and stores one document per fact.
//
// The returned result uses the wrapped reply shape consumers expect:
//
//	{"results": [{"id": ..., "memory": ..., "event": "ADD"}, ...]}
//
// A conversation with nothing worth remembering yields empty results,
// not an error.
func (s *Service) Add(ctx context.Context, messages []Message, userID string, metadata map[string]any) (any, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	facts, err := s.extractor.ExtractFacts(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("extracting facts: %w", err)
	}

	results := make([]map[string]any, 0, len(facts))
	if len(facts) == 0 {
		s.logger.Debug("no facts extracted", zap.String("user_id", userID))
		return map[string]any{"results": results}, nil
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	docs := make([]vectorstore.Document, len(facts))
	for i, fact := range facts {
		docMeta := make(map[string]any, len(metadata)+2)
		for k, v := range metadata {
			docMeta[k] = v
		}
		docMeta["user_id"] = userID
		docMeta["created_at"] = createdAt

		docs[i] = vectorstore.Document{
			ID:       uuid.New().String(),
			Content:  fact,
			Metadata: docMeta,
		}
	}

	ids, err := s.store.Add(ctx, userID, docs)
	if err != nil {
		return nil, fmt.Errorf("storing memories: %w", err)
	}

	for i, id := range ids {
		results = append(results, map[string]any{
			"id":     id,
			"memory": docs[i].Content,
			"event":  "ADD",
		})
	}

	s.logger.Info("memories stored",
		zap.String("user_id", userID),
		zap.Int("count", len(ids)),
	)

	return map[string]any{"results": results}, nil
}

// Search returns the user's memories most similar to the query.
func (s *Service) Search(ctx context.Context, query string, userID string, limit int) (any, error) {
	hits, err := s.store.Search(ctx, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}

	results := make([]map[string]any, len(hits))
	for i, hit := range hits {
		results[i] = map[string]any{
			"id":       hit.ID,
			"memory":   hit.Content,
			"score":    float64(hit.Score),
			"metadata": hit.Metadata,
		}
	}

	return map[string]any{"results": results}, nil
}

// GetAll returns every memory stored for the user, without scores.
func (s *Service) GetAll(ctx context.Context, userID string) (any, error) {
	docs, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	results := make([]map[string]any, len(docs))
	for i, doc := range docs {
		results[i] = map[string]any{
			"id":       doc.ID,
			"memory":   doc.Content,
			"metadata": doc.Metadata,
		}
	}

	return map[string]any{"results": results}, nil
}

// DeleteAll removes every memory stored for the user.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	if err := s.store.DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("deleting memories: %w", err)
	}

	s.logger.Info("memories cleared", zap.String("user_id", userID))
	return nil
}

// Ensure interface is implemented.
var _ Engine = (*Service)(nil)
