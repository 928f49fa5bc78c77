package certificates

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/metrics"
	"github.com/warsha-platform/backend/pkg/storage"
)

const sweepChunk = 500

// BlobJanitor lists and removes stored certificate objects.
type BlobJanitor interface {
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// KeyReferencer reports which storage keys are recorded on an issuance row.
type KeyReferencer interface {
	ReferencedKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
}

// Sweeper deletes stored certificates that no issuance row points at. These are left behind when
// the row insert fails after a successful upload. Objects younger than the grace period are kept
// so in-flight issuance is never touched.
type Sweeper struct {
	blobs   BlobJanitor
	refs    KeyReferencer
	grace   time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewSweeper creates an orphan sweeper.
func NewSweeper(blobs BlobJanitor, refs KeyReferencer, grace time.Duration, m *metrics.Collector, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{blobs: blobs, refs: refs, grace: grace, metrics: m, logger: logger, now: time.Now}
}

// Run performs one sweep and returns how many objects were deleted.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	objects, err := s.blobs.ListOlderThan(ctx, s.now().Add(-s.grace))
	if err != nil {
		return 0, err
	}
	deleted := 0
	for start := 0; start < len(objects); start += sweepChunk {
		end := min(start+sweepChunk, len(objects))
		keys := make([]string, 0, end-start)
		for _, o := range objects[start:end] {
			keys = append(keys, o.Key)
		}
		referenced, err := s.refs.ReferencedKeys(ctx, keys)
		if err != nil {
			return deleted, fmt.Errorf("referenced keys: %w", err)
		}
		for _, k := range keys {
			if _, ok := referenced[k]; ok {
				continue
			}
			if err := s.blobs.Delete(ctx, k); err != nil {
				s.logger.Warn("delete orphaned certificate failed", zap.String("storage_key", k), zap.Error(err))
				continue
			}
			deleted++
		}
	}
	s.metrics.AddOrphansDeleted(deleted)
	s.logger.Info("certificate orphan sweep finished", zap.Int("scanned", len(objects)), zap.Int("deleted", deleted))
	return deleted, nil
}
