package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/skaldhq/skald/internal/ai"
	"github.com/skaldhq/skald/internal/chunker"
	"github.com/skaldhq/skald/internal/filestore"
	"github.com/skaldhq/skald/internal/loader"
	"github.com/skaldhq/skald/internal/model"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
	"github.com/skaldhq/skald/internal/pkg/timeutil"
	"github.com/skaldhq/skald/internal/source"
	"github.com/skaldhq/skald/internal/store"
)

// embedConcurrency caps how many fragment embeddings of a single document
// run in flight at once.
const embedConcurrency = 4

type IngestService struct {
	agentID  string
	store    store.Store
	files    *filestore.Store
	source   source.Client
	embedder ai.IEmbedder
	chunks   *chunker.Chunker
}

func NewIngestService(agentID string, st store.Store, files *filestore.Store, src source.Client, embedder ai.IEmbedder, chunks *chunker.Chunker) *IngestService {
	return &IngestService{agentID: agentID, store: st, files: files, source: src, embedder: embedder, chunks: chunks}
}

// Ingest downloads one remote item, extracts its text and writes the
// document plus its embedded fragments. Unchanged content (same checksum)
// is a no-op; changed content is fully replaced. It reports whether
// anything was written.
func (s *IngestService) Ingest(ctx context.Context, item *model.RemoteItem) (bool, error) {
	if item == nil || item.Metadata.URL == "" {
		return false, fmt.Errorf("%w: remote item has no url", appErr.ErrInvalid)
	}
	if !loader.Supported(item.Name) {
		return false, fmt.Errorf("%w: %s", appErr.ErrUnsupportedFormat, item.Name)
	}
	id := deterministicID(item.Metadata.URL)
	logger := logutil.GetLogger(ctx).With(
		zap.String("agent_id", s.agentID),
		zap.String("doc_id", id),
		zap.String("name", item.Name))

	tmp, err := os.CreateTemp("", "skald-*"+filepath.Ext(item.Name))
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	// the downloaded copy is removed on every exit path
	defer os.Remove(tmpPath)

	if err := s.source.Download(ctx, item.Metadata.URL, tmpPath); err != nil {
		logger.Error("failed to download remote item", zap.Error(err))
		return false, err
	}
	text, err := loader.Extract(tmpPath)
	if err != nil {
		logger.Error("failed to extract text", zap.Error(err))
		return false, err
	}
	metadata := map[string]interface{}{
		"name": item.Name,
		"url":  item.Metadata.URL,
	}
	changed, err := s.ingestText(ctx, id, item.Metadata.URL, item.Metadata.Kind, text, metadata)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := s.files.Save(s.agentID, id, tmpPath); err != nil {
		logger.Error("failed to keep local file copy", zap.Error(err))
		return false, err
	}
	logger.Info("ingested remote item")
	return true, nil
}

// AddText ingests raw text directly, outside the sync loop. An empty id
// gets a fresh random one; an existing id with changed content is replaced.
func (s *IngestService) AddText(ctx context.Context, id string, text string, kind string, metadata map[string]interface{}) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: text is required", appErr.ErrInvalid)
	}
	if id == "" {
		id = newID()
	}
	if _, err := s.ingestText(ctx, id, "", kind, text, metadata); err != nil {
		return "", err
	}
	return id, nil
}

// ingestText is the shared write path. It reports whether anything was
// written; an unchanged checksum skips the replace entirely.
func (s *IngestService) ingestText(ctx context.Context, id, sourceURL, kind, text string, metadata map[string]interface{}) (bool, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("agent_id", s.agentID), zap.String("doc_id", id))

	sum := checksumText(text)
	existing, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.Checksum == sum {
		logger.Debug("checksum unchanged, skipping")
		return false, nil
	}

	// embed before touching storage: a provider failure here leaves the
	// previous version intact and the new checksum unrecorded, so a later
	// pass retries the item instead of skipping it
	now := timeutil.NowUnix()
	pieces := s.chunks.Chunk(text)
	fragments, err := s.embedChunks(ctx, id, pieces, metadata, now)
	if err != nil {
		logger.Error("failed to embed fragments", zap.Error(err))
		return false, err
	}

	if existing != nil {
		if err := s.store.DeleteDocument(ctx, id); err != nil {
			return false, err
		}
		if err := s.files.Delete(s.agentID, id); err != nil {
			logger.Warn("failed to remove stale file copy", zap.Error(err))
		}
	}

	doc := &model.Document{
		ID:       id,
		AgentID:  s.agentID,
		Source:   sourceURL,
		Kind:     kind,
		Text:     text,
		Checksum: sum,
		Metadata: metadata,
		IsMain:   true,
		Ctime:    now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return false, err
	}
	if err := s.store.CreateFragments(ctx, fragments); err != nil {
		// roll back the fragmentless row; its checksum would otherwise
		// make every retry a no-op
		if derr := s.store.DeleteDocument(ctx, id); derr != nil {
			logger.Error("failed to roll back document without fragments", zap.Error(derr))
		}
		return false, err
	}
	logger.Info("document written", zap.Int("fragments", len(fragments)))
	return true, nil
}

// embedChunks embeds chunks with bounded concurrency; chunks of one
// document are independent so order of completion does not matter.
func (s *IngestService) embedChunks(ctx context.Context, docID string, pieces []string, metadata map[string]interface{}, ctime int64) ([]*model.Fragment, error) {
	fragments := make([]*model.Fragment, len(pieces))
	errs := make([]error, len(pieces))
	sem := make(chan struct{}, embedConcurrency)
	var wg sync.WaitGroup
	for i, piece := range pieces {
		wg.Add(1)
		go func(i int, piece string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vector, err := s.embedder.Embed(ctx, piece, ai.TaskDocument)
			if err != nil {
				errs[i] = err
				return
			}
			fragments[i] = &model.Fragment{
				ID:         newID(),
				AgentID:    s.agentID,
				DocumentID: docID,
				Text:       piece,
				Position:   i,
				Embedding:  vector,
				Metadata:   cloneMetadata(metadata),
				Ctime:      ctime,
			}
		}(i, piece)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return fragments, nil
}

func cloneMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
