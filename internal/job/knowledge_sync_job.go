package job

import (
	"context"

	"github.com/skaldhq/skald/internal/service"
)

// KnowledgeSyncJob runs one reconciliation cycle per tick. Errors are
// returned for the scheduler to log; they never terminate the loop.
type KnowledgeSyncJob struct {
	sync *service.SyncService
}

func NewKnowledgeSyncJob(sync *service.SyncService) *KnowledgeSyncJob {
	return &KnowledgeSyncJob{sync: sync}
}

func (j *KnowledgeSyncJob) Name() string {
	return "knowledge_sync"
}

func (j *KnowledgeSyncJob) Run(ctx context.Context) error {
	if j.sync == nil {
		return nil
	}
	return j.sync.RunCycle(ctx)
}
