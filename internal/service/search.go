package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/skaldhq/skald/internal/ai"
	"github.com/skaldhq/skald/internal/model"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
	"github.com/skaldhq/skald/internal/store"
)

type SearchService struct {
	agentID          string
	store            store.Store
	embedder         ai.IEmbedder
	defaultLimit     int
	defaultThreshold float64
}

func NewSearchService(agentID string, st store.Store, embedder ai.IEmbedder, defaultLimit int, defaultThreshold float64) *SearchService {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &SearchService{agentID: agentID, store: st, embedder: embedder, defaultLimit: defaultLimit, defaultThreshold: defaultThreshold}
}

type SearchRequest struct {
	Query     string
	Limit     int
	Threshold *float64
	Filters   map[string]interface{}
}

// Search embeds the query and returns the most similar fragments above the
// threshold. Nothing clearing the threshold is an empty result, not an
// error.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) ([]*model.SearchResult, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	threshold := s.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	vector, err := s.embedder.Embed(ctx, req.Query, ai.TaskQuery)
	if err != nil {
		logutil.GetLogger(ctx).Error("failed to embed search query",
			zap.String("agent_id", s.agentID), zap.Error(err))
		return nil, err
	}
	results, err := s.store.SearchSimilar(ctx, s.agentID, vector, store.SearchOptions{
		Limit:     limit,
		Threshold: threshold,
		Filters:   store.ParseFilters(req.Filters),
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
