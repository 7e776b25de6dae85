package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const defaultQueueCapacity = 64

// MemoryQueue is a channel-backed job queue for single-process deployments.
// Nacked deliveries come back after their delay; dead-lettered ones are kept
// for inspection instead of being dropped.
type MemoryQueue struct {
	mu         sync.Mutex
	messages   chan *job.ExecutionMessage
	deadLetter []*job.ExecutionMessage
	closed     bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &MemoryQueue{
		messages: make(chan *job.ExecutionMessage, capacity),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("reminder: execution message is required")
	}
	// The send happens under the mutex so Close cannot close the channel
	// between the closed check and the send.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("reminder: queue is closed")
	}
	select {
	case q.messages <- msg:
		return nil
	default:
		return fmt.Errorf("reminder: queue is full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-q.messages:
		if !ok {
			return nil, fmt.Errorf("reminder: queue is closed")
		}
		return &memoryDelivery{queue: q, msg: msg}, nil
	}
}

func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.messages)
	}
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.ExecutionMessage, len(q.deadLetter))
	copy(out, q.deadLetter)
	return out
}

func (q *MemoryQueue) requeue(msg *job.ExecutionMessage, delay time.Duration) {
	if delay <= 0 {
		_ = q.Enqueue(context.Background(), msg)
		return
	}
	time.AfterFunc(delay, func() {
		_ = q.Enqueue(context.Background(), msg)
	})
}

type memoryDelivery struct {
	queue   *MemoryQueue
	msg     *job.ExecutionMessage
	settled bool
	mu      sync.Mutex
}

func (d *memoryDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *memoryDelivery) Ack(context.Context) error {
	return d.settle(func() {})
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	return d.settle(func() {
		if opts.DeadLetter {
			d.queue.mu.Lock()
			d.queue.deadLetter = append(d.queue.deadLetter, d.msg)
			d.queue.mu.Unlock()
			return
		}
		if opts.Requeue {
			d.queue.requeue(d.msg, opts.Delay)
		}
	})
}

func (d *memoryDelivery) settle(apply func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return fmt.Errorf("reminder: delivery already settled")
	}
	d.settled = true
	apply()
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
