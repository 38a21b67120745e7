// Package queue carries units of work from webhook intake to the worker
// pool. The in-memory implementation is the default; the interface is the
// boundary an external broker would implement instead. Delivery is
// at-least-once from the pipeline's point of view, which is why reporting
// downstream must be idempotent.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/google/uuid"
)

// ErrFull is returned when the queue cannot accept more work; the intake
// endpoint translates it into backpressure (503).
var ErrFull = errors.New("queue full")

// ErrClosed is returned when enqueueing after shutdown.
var ErrClosed = errors.New("queue closed")

// Job is one unit of work: a single webhook delivery or reconciliation item.
type Job struct {
	ID         string
	DeliveryID string
	Kind       models.EventKind
	Payload    []byte
}

// NewJob builds a job with a fresh unit-of-work ID.
func NewJob(deliveryID string, kind models.EventKind, payload []byte) Job {
	return Job{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		Kind:       kind,
		Payload:    payload,
	}
}

// Queue is the enqueue/dequeue collaborator boundary.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Jobs() <-chan Job
	Close()
}

// Memory is a buffered-channel queue for single-process deployments.
type Memory struct {
	mu     sync.Mutex
	ch     chan Job
	closed bool
}

// NewMemory creates an in-memory queue with the given buffer size.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 256
	}
	return &Memory{ch: make(chan Job, size)}
}

// Enqueue adds a job without blocking; a full buffer is a hard error so the
// caller can shed load instead of stalling webhook responses.
func (m *Memory) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	select {
	case m.ch <- job:
		return nil
	default:
		return ErrFull
	}
}

// Jobs returns the consumption channel for workers.
func (m *Memory) Jobs() <-chan Job {
	return m.ch
}

// Close stops intake; queued jobs still drain.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}
