package jobs

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
)

// Flusher saves all instantiated tenant stores.
type Flusher interface {
	SaveAll(ctx context.Context) error
	TenantIDs() []string
}

// SnapshotMirror copies a tenant's on-disk snapshot to remote storage.
type SnapshotMirror interface {
	Upload(ctx context.Context, tenantID, dataDir string) error
}

// FlushTask periodically flushes tenant vector stores to disk and, when a
// mirror is configured, copies each tenant's snapshot to object storage.
type FlushTask struct {
	flusher  Flusher
	mirror   SnapshotMirror // nil disables mirroring
	dataRoot string
}

func NewFlushTask(flusher Flusher, mirror SnapshotMirror, dataRoot string) *FlushTask {
	return &FlushTask{flusher: flusher, mirror: mirror, dataRoot: dataRoot}
}

// Run flushes everything. Mirror failures are logged per tenant so one
// unreachable bucket cannot abort the local flush of the rest.
func (t *FlushTask) Run(ctx context.Context) error {
	if err := t.flusher.SaveAll(ctx); err != nil {
		return fmt.Errorf("failed to flush tenant stores: %w", err)
	}

	if t.mirror == nil {
		return nil
	}
	for _, tenantID := range t.flusher.TenantIDs() {
		dataDir := filepath.Join(t.dataRoot, tenantID)
		if err := t.mirror.Upload(ctx, tenantID, dataDir); err != nil {
			log.Printf("failed to mirror snapshot for tenant %s: %v", tenantID, err)
		}
	}
	return nil
}
