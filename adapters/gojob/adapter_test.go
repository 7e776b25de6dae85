package gojob

import (
	"context"
	"testing"
	"time"

	"github.com/thegiantbeast/momentus-shop-api/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

type stubEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	lastNack queue.NackOptions
}

func (s *stubDelivery) Message() *job.ExecutionMessage { return s.msg }

func (s *stubDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.lastNack = opts
	return nil
}

func TestEnqueuerAdapterMapsMessage(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	adapter := NewEnqueuerAdapter(enqueuer)

	err := adapter.Enqueue(context.Background(), &core.JobExecutionMessage{
		JobID:          "  " + JobIDReminderSweep + "  ",
		Parameters:     map[string]any{"trigger": "ticker"},
		IdempotencyKey: "sweep-2026-02-13T12:00",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDReminderSweep {
		t.Fatalf("unexpected mapped message: %+v", enqueuer.last)
	}
	if enqueuer.last.Parameters["trigger"] != "ticker" {
		t.Fatalf("expected parameters to carry over, got %+v", enqueuer.last.Parameters)
	}
}

func TestEnqueuerAdapterRequiresMessage(t *testing.T) {
	adapter := NewEnqueuerAdapter(&stubEnqueuer{})
	if err := adapter.Enqueue(context.Background(), nil); err == nil {
		t.Fatal("expected nil message to fail")
	}
}

func TestRetryPolicyNormalizeAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: 10 * time.Second, DeadLetterOnMax: true}

	out := policy.NormalizeAttempt(core.JobNackOptions{Delay: time.Minute, Requeue: true}, 1)
	if out.Delay != 10*time.Second {
		t.Fatalf("expected delay capped at max, got %s", out.Delay)
	}
	if !out.Requeue || out.DeadLetter {
		t.Fatalf("expected requeue below max attempts, got %+v", out)
	}

	out = policy.NormalizeAttempt(core.JobNackOptions{Requeue: true}, 3)
	if out.Requeue || !out.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %+v", out)
	}

	out = RetryPolicy{}.NormalizeAttempt(core.JobNackOptions{}, 1)
	if !out.Requeue {
		t.Fatalf("expected default requeue, got %+v", out)
	}
}

func TestDeliveryAdapterAppliesPolicyOnNack(t *testing.T) {
	delivery := &stubDelivery{msg: &job.ExecutionMessage{JobID: JobIDReminderSweep}}
	adapter := NewDeliveryAdapter(delivery, RetryPolicy{MaxAttempts: 2, DeadLetterOnMax: true})

	if got := adapter.Message(); got == nil || got.JobID != JobIDReminderSweep {
		t.Fatalf("unexpected mapped delivery message: %+v", got)
	}

	if err := adapter.NackForAttempt(context.Background(), core.JobNackOptions{Requeue: true}, 2); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if delivery.lastNack.Requeue || !delivery.lastNack.DeadLetter {
		t.Fatalf("expected policy-normalized nack, got %+v", delivery.lastNack)
	}

	if err := adapter.Ack(context.Background()); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !delivery.acked {
		t.Fatal("expected ack to reach the delivery")
	}
}
