package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/skaldhq/skald/internal/filestore"
	"github.com/skaldhq/skald/internal/model"
	"github.com/skaldhq/skald/internal/store"
)

// KnowledgeService is the public surface of one agent's knowledge base:
// add, list, get, remove and similarity search.
type KnowledgeService struct {
	agentID string
	store   store.Store
	files   *filestore.Store
	ingest  *IngestService
	search  *SearchService
}

func NewKnowledgeService(agentID string, st store.Store, files *filestore.Store, ingest *IngestService, search *SearchService) *KnowledgeService {
	return &KnowledgeService{agentID: agentID, store: st, files: files, ingest: ingest, search: search}
}

func (s *KnowledgeService) AgentID() string {
	return s.agentID
}

type AddRequest struct {
	ID       string
	Text     string
	Kind     string
	Metadata map[string]interface{}
}

func (s *KnowledgeService) Add(ctx context.Context, req AddRequest) (string, error) {
	return s.ingest.AddText(ctx, req.ID, req.Text, req.Kind, req.Metadata)
}

type ListRequest struct {
	Limit   int
	Cursor  string
	SortAsc bool
	Filters map[string]interface{}
}

type ListResponse struct {
	Items      []*model.Document
	NextCursor string
}

func (s *KnowledgeService) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	docs, next, err := s.store.ListDocuments(ctx, s.agentID, store.ListOptions{
		Limit:   req.Limit,
		Cursor:  req.Cursor,
		SortAsc: req.SortAsc,
		Filters: store.ParseFilters(req.Filters),
	})
	if err != nil {
		return nil, err
	}
	return &ListResponse{Items: docs, NextCursor: next}, nil
}

func (s *KnowledgeService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// Remove deletes the document, its fragments and the downloaded file copy.
func (s *KnowledgeService) Remove(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := s.files.Delete(s.agentID, id); err != nil {
		logutil.GetLogger(ctx).Warn("failed to remove file copy",
			zap.String("agent_id", s.agentID), zap.String("doc_id", id), zap.Error(err))
	}
	return nil
}

func (s *KnowledgeService) Search(ctx context.Context, req SearchRequest) ([]*model.SearchResult, error) {
	return s.search.Search(ctx, req)
}
