package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/thegiantbeast/momentus-shop-api/adapters/gojob"
	"github.com/thegiantbeast/momentus-shop-api/core"
)

const defaultSweepInterval = 5 * time.Minute

// Scheduler periodically enqueues a sweep job. The idempotency key is the
// interval bucket, so overlapping schedulers collapse to one sweep per tick.
type Scheduler struct {
	enqueuer core.JobEnqueuer
	interval time.Duration
	logger   core.Logger
	now      func() time.Time
}

func NewScheduler(enqueuer core.JobEnqueuer, interval time.Duration, logger core.Logger) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("reminder: enqueuer is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Scheduler{
		enqueuer: enqueuer,
		interval: interval,
		logger:   logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Run enqueues one sweep immediately, then one per interval until ctx is
// done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.enqueueSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.enqueueSweep(ctx)
		}
	}
}

func (s *Scheduler) enqueueSweep(ctx context.Context) {
	bucket := s.now().Truncate(s.interval).Format(time.RFC3339)
	err := s.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          gojob.JobIDReminderSweep,
		Parameters:     map[string]any{"trigger": "scheduler"},
		IdempotencyKey: gojob.JobIDReminderSweep + ":" + bucket,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("enqueue reminder sweep failed", "error", err.Error())
	}
}
