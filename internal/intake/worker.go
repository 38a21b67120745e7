package intake

import (
	"context"

	"github.com/clawarden/clawarden-go/internal/queue"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pool consumes units of work from the queue with a fixed number of
// workers. Concurrent execution is safe: evaluation is pure and reporting
// is idempotent per SHA, so two overlapping units for the same commit
// converge on the same forge-visible status.
type Pool struct {
	queue   queue.Queue
	handler *Handler
	workers int
	enabled bool
	logger  *logrus.Logger
}

// NewPool creates a worker pool. enabled comes from configuration; a
// disabled pipeline drains nothing and evaluates nothing.
func NewPool(q queue.Queue, handler *Handler, workers int, enabled bool, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = 8
	}
	return &Pool{
		queue:   q,
		handler: handler,
		workers: workers,
		enabled: enabled,
		logger:  logger,
	}
}

// Run blocks until the context is canceled or the queue closes. Handler
// errors terminate only their own unit of work, never the pool.
func (p *Pool) Run(ctx context.Context) error {
	if !p.enabled {
		p.logger.Warn("evaluation pipeline disabled by configuration")
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job, ok := <-p.queue.Jobs():
					if !ok {
						return nil
					}
					if err := p.handler.Handle(ctx, job); err != nil {
						p.logger.WithError(err).WithFields(logrus.Fields{
							"unit_id":     job.ID,
							"delivery_id": job.DeliveryID,
							"event_kind":  job.Kind,
						}).Error("unit of work failed")
					}
				}
			}
		})
	}
	return g.Wait()
}
