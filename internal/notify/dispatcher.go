package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DispatcherConfig controls phone normalization and bulk rate limiting.
type DispatcherConfig struct {
	CountryCode string
	BatchSize   int
	BatchDelay  time.Duration
}

// Recipient is one message addressed to one phone number.
type Recipient struct {
	Phone   string
	Message string
}

// SendResult is the outcome of delivering one message.
type SendResult struct {
	Phone   string `json:"phone"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SendError describes one failed recipient of a bulk send.
type SendError struct {
	Phone string `json:"phone"`
	Error string `json:"error"`
}

// BulkResult aggregates a bulk send. Results is in recipient order.
type BulkResult struct {
	SuccessCount int          `json:"success_count"`
	FailedCount  int          `json:"failed_count"`
	Errors       []SendError  `json:"errors"`
	Results      []SendResult `json:"-"`
}

// ProgressFunc receives cumulative (processed, total) counts after each batch.
type ProgressFunc func(processed, total int)

// Dispatcher delivers messages over a Channel, batching bulk sends.
type Dispatcher struct {
	channel Channel
	cfg     DispatcherConfig
	wait    func(ctx context.Context, d time.Duration)
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. A non-positive batch size falls back to 3.
func NewDispatcher(channel Channel, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	return &Dispatcher{channel: channel, cfg: cfg, wait: sleep, logger: logger}
}

// Channel returns the underlying delivery channel.
func (d *Dispatcher) Channel() Channel { return d.channel }

// SendOne normalizes phone and delivers message. It never returns an error; failures are in the result.
func (d *Dispatcher) SendOne(ctx context.Context, phone, message string) SendResult {
	normalized := NormalizePhone(phone, d.cfg.CountryCode)
	if normalized == "" {
		return SendResult{Phone: phone, Error: "invalid phone number"}
	}
	if err := d.channel.Send(ctx, normalized, message); err != nil {
		d.logger.Warn("notification send failed",
			zap.String("channel", d.channel.Name()),
			zap.String("phone", normalized),
			zap.Error(err),
		)
		return SendResult{Phone: normalized, Error: err.Error()}
	}
	return SendResult{Phone: normalized, Success: true}
}

// SendBulk delivers to recipients in batches of BatchSize. Each batch is sent concurrently and
// awaited before the next; BatchDelay separates consecutive batches. Individual failures never
// stop the run. A canceled ctx does: recipients not yet attempted are reported failed with the
// context error.
func (d *Dispatcher) SendBulk(ctx context.Context, recipients []Recipient, onProgress ProgressFunc) BulkResult {
	total := len(recipients)
	out := BulkResult{Errors: []SendError{}, Results: make([]SendResult, total)}
	for start := 0; start < total; start += d.cfg.BatchSize {
		end := min(start+d.cfg.BatchSize, total)

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					out.Results[i] = SendResult{Phone: recipients[i].Phone, Error: err.Error()}
					return err
				}
				out.Results[i] = d.SendOne(gctx, recipients[i].Phone, recipients[i].Message)
				return nil
			})
		}
		err := g.Wait()
		if err != nil {
			for i := end; i < total; i++ {
				out.Results[i] = SendResult{Phone: recipients[i].Phone, Error: err.Error()}
			}
			d.logger.Warn("bulk send canceled", zap.Int("attempted", start), zap.Int("total", total), zap.Error(err))
			end = total
		}

		for _, r := range out.Results[start:end] {
			if r.Success {
				out.SuccessCount++
			} else {
				out.FailedCount++
				out.Errors = append(out.Errors, SendError{Phone: r.Phone, Error: r.Error})
			}
		}
		if onProgress != nil {
			onProgress(end, total)
		}
		if err != nil {
			break
		}
		if end < total && d.cfg.BatchDelay > 0 {
			d.wait(ctx, d.cfg.BatchDelay)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
