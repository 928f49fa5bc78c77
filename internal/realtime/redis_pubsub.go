package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "workshop-progress:"
	publishTimeout = 5 * time.Second
)

// Progress is a bulk-send progress update for one workshop job.
type Progress struct {
	WorkshopID   uuid.UUID `json:"workshop_id"`
	JobID        string    `json:"job_id"`
	Kind         string    `json:"kind"`
	Processed    int       `json:"processed"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	Done         bool      `json:"done"`
	At           int64     `json:"at"`
}

// Channel returns the Redis channel carrying progress for the workshop.
func Channel(workshopID uuid.UUID) string {
	return channelPrefix + workshopID.String()
}

// ProgressBus publishes and subscribes to progress updates over Redis pub/sub, so any API instance
// can relay what a worker reports.
type ProgressBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewProgressBus creates a Redis pub/sub bridge for progress events.
func NewProgressBus(client *redis.Client, logger *zap.Logger) *ProgressBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressBus{client: client, logger: logger}
}

// Publish sends p to the workshop's channel.
func (b *ProgressBus) Publish(ctx context.Context, p Progress) error {
	if p.At == 0 {
		p.At = time.Now().Unix()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, Channel(p.WorkshopID), body).Err()
}

// Subscribe calls handler for each update on the workshop's channel until cancel is called or ctx ends.
func (b *ProgressBus) Subscribe(ctx context.Context, workshopID uuid.UUID, handler func(Progress)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(ctx, Channel(workshopID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p Progress
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					b.logger.Debug("dropping malformed progress message", zap.Error(err))
					continue
				}
				handler(p)
			}
		}
	}()
	return cancelCtx, nil
}
