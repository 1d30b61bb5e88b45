package service

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/skaldhq/skald/internal/filestore"
	"github.com/skaldhq/skald/internal/model"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
	"github.com/skaldhq/skald/internal/source"
	"github.com/skaldhq/skald/internal/store"
)

// SyncService reconciles the local knowledge base against what the remote
// source currently lists: every listed item is handed to ingest, whose
// checksum skip makes unchanged items a no-op and replaces changed ones;
// local documents the remote no longer lists are tombstoned by absence.
type SyncService struct {
	agentID  string
	owner    string
	pageSize int
	store    store.Store
	files    *filestore.Store
	source   source.Client
	ingest   *IngestService
}

func NewSyncService(agentID, owner string, pageSize int, st store.Store, files *filestore.Store, src source.Client, ingest *IngestService) *SyncService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &SyncService{agentID: agentID, owner: owner, pageSize: pageSize, store: st, files: files, source: src, ingest: ingest}
}

// RunCycle performs one reconciliation pass. Per-item failures are logged
// and skipped so one bad document never blocks the rest; only failures
// that prevent computing the diff at all are returned.
func (s *SyncService) RunCycle(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("agent_id", s.agentID))

	remote, err := s.fetchRemoteItems(ctx)
	if err != nil {
		logger.Error("failed to list remote items", zap.Error(err))
		return err
	}
	local, err := s.fetchLocalIDs(ctx)
	if err != nil {
		logger.Error("failed to list local documents", zap.Error(err))
		return err
	}

	var added, updated, removed, failed int
	for id, item := range remote {
		_, existed := local[id]
		changed, err := s.ingest.Ingest(ctx, item)
		if err != nil {
			failed++
			if errors.Is(err, appErr.ErrUnsupportedFormat) {
				logger.Warn("skipping unsupported remote item", zap.String("name", item.Name))
				continue
			}
			logger.Error("failed to ingest remote item", zap.String("name", item.Name), zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		if existed {
			updated++
		} else {
			added++
		}
	}
	for id := range local {
		if _, ok := remote[id]; ok {
			continue
		}
		if err := s.store.DeleteDocument(ctx, id); err != nil {
			failed++
			logger.Error("failed to delete tombstoned document", zap.String("doc_id", id), zap.Error(err))
			continue
		}
		if err := s.files.Delete(s.agentID, id); err != nil {
			logger.Warn("failed to remove file copy", zap.String("doc_id", id), zap.Error(err))
		}
		removed++
	}
	logger.Info("sync cycle finished",
		zap.Int("remote", len(remote)),
		zap.Int("local", len(local)),
		zap.Int("added", added),
		zap.Int("updated", updated),
		zap.Int("removed", removed),
		zap.Int("failed", failed))
	return nil
}

// fetchRemoteItems pages through the source API until a short page signals
// the end of the list, keyed by deterministic document id.
func (s *SyncService) fetchRemoteItems(ctx context.Context) (map[string]*model.RemoteItem, error) {
	items := make(map[string]*model.RemoteItem)
	cursor := ""
	for {
		page, next, err := s.source.ListItems(ctx, s.owner, cursor, s.pageSize)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			if item == nil || item.Metadata.URL == "" {
				continue
			}
			items[deterministicID(item.Metadata.URL)] = item
		}
		if next == "" || len(page) < s.pageSize {
			return items, nil
		}
		cursor = next
	}
}

func (s *SyncService) fetchLocalIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	cursor := ""
	for {
		docs, next, err := s.store.ListDocuments(ctx, s.agentID, store.ListOptions{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			ids[doc.ID] = struct{}{}
		}
		if next == "" {
			return ids, nil
		}
		cursor = next
	}
}
