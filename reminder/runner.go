package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thegiantbeast/momentus-shop-api/adapters/gojob"
	"github.com/thegiantbeast/momentus-shop-api/core"
)

// Sweeper is the slice of the order service the runner needs.
type Sweeper interface {
	SweepReminders(ctx context.Context) (core.SweepOutcome, error)
}

type RunnerConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxAttempts: 3,
		RetryDelay:  30 * time.Second,
	}
}

// Runner consumes reminder sweep jobs from the queue and runs the sweep.
// Failed sweeps are nacked with a delay so the enqueuer side stays a dumb
// ticker.
type Runner struct {
	dequeuer core.JobDequeuer
	sweeper  Sweeper
	logger   core.Logger
	hook     core.JobWorkerHook
	config   RunnerConfig
	attempts map[string]int
	now      func() time.Time
}

func NewRunner(dequeuer core.JobDequeuer, sweeper Sweeper, logger core.Logger, config RunnerConfig) (*Runner, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("reminder: dequeuer is required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("reminder: sweeper is required")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRunnerConfig().MaxAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRunnerConfig().RetryDelay
	}
	return &Runner{
		dequeuer: dequeuer,
		sweeper:  sweeper,
		logger:   logger,
		config:   config,
		attempts: map[string]int{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (r *Runner) SetHook(hook core.JobWorkerHook) {
	if r != nil {
		r.hook = hook
	}
}

// Run blocks until ctx is done, draining sweep jobs one at a time.
func (r *Runner) Run(ctx context.Context) error {
	for {
		delivery, err := r.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := r.handle(ctx, delivery); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Runner) handle(ctx context.Context, delivery core.JobDelivery) error {
	msg := delivery.Message()
	if msg == nil || msg.JobID != gojob.JobIDReminderSweep {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		r.logWarn("unexpected job on reminder queue", "job_id", jobID)
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "unexpected job id",
		})
	}

	attempt := r.nextAttempt(msg)
	startedAt := r.now()
	r.emit(ctx, func(hook core.JobWorkerHook, event core.JobWorkerEvent) {
		hook.OnStart(ctx, event)
	}, msg, attempt, nil, startedAt, 0)

	outcome, err := r.sweeper.SweepReminders(ctx)
	duration := r.now().Sub(startedAt)
	if err != nil {
		r.logWarn("reminder sweep failed", "attempt", attempt, "error", err.Error())
		if attempt >= r.config.MaxAttempts {
			r.clearAttempts(msg)
			r.emit(ctx, func(hook core.JobWorkerHook, event core.JobWorkerEvent) {
				hook.OnFailure(ctx, event)
			}, msg, attempt, err, startedAt, duration)
			return delivery.Nack(ctx, core.JobNackOptions{
				DeadLetter: true,
				Reason:     err.Error(),
			})
		}
		r.emit(ctx, func(hook core.JobWorkerHook, event core.JobWorkerEvent) {
			hook.OnRetry(ctx, event)
		}, msg, attempt, err, startedAt, duration)
		return delivery.Nack(ctx, core.JobNackOptions{
			Delay:   r.config.RetryDelay,
			Requeue: true,
			Reason:  err.Error(),
		})
	}

	r.clearAttempts(msg)
	r.logInfo(
		"reminder sweep completed",
		"checked", outcome.Checked,
		"reminded", outcome.Reminded,
		"skipped", outcome.Skipped,
	)
	r.emit(ctx, func(hook core.JobWorkerHook, event core.JobWorkerEvent) {
		hook.OnSuccess(ctx, event)
	}, msg, attempt, nil, startedAt, duration)
	return delivery.Ack(ctx)
}

func (r *Runner) nextAttempt(msg *core.JobExecutionMessage) int {
	key := attemptKey(msg)
	r.attempts[key]++
	return r.attempts[key]
}

func (r *Runner) clearAttempts(msg *core.JobExecutionMessage) {
	delete(r.attempts, attemptKey(msg))
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if msg.IdempotencyKey != "" {
		return msg.IdempotencyKey
	}
	return msg.JobID
}

func (r *Runner) emit(
	_ context.Context,
	fire func(core.JobWorkerHook, core.JobWorkerEvent),
	msg *core.JobExecutionMessage,
	attempt int,
	err error,
	startedAt time.Time,
	duration time.Duration,
) {
	if r.hook == nil {
		return
	}
	fire(r.hook, core.JobWorkerEvent{
		Message:   msg,
		Attempt:   attempt,
		Err:       err,
		StartedAt: startedAt,
		Duration:  duration,
	})
}

func (r *Runner) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Runner) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
