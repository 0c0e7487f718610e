package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
	"github.com/trailverse/analytics/internal/telemetry"
)

// Pool drains a Queue into a storage.Writer with a fixed number of
// workers. Each worker batches by size and by interval. Failed writes are
// logged and counted, never retried.
type Pool struct {
	queue   *Queue
	store   storage.Writer
	metrics *telemetry.Metrics
	log     logger.Logger
	cfg     Config
	wg      sync.WaitGroup
	stop    sync.Once
}

// NewPool creates a pool reading from queue and writing to store.
func NewPool(queue *Queue, store storage.Writer, cfg Config, log logger.Logger) *Pool {
	cfg.SetDefaults()
	return &Pool{
		queue:   queue,
		store:   store,
		metrics: queue.metrics,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for worker := range p.cfg.Workers {
		p.wg.Add(1)
		go p.flushLoop(worker)
	}

	p.log.Info("Analytics writer pool started",
		logger.Int("workers", p.cfg.Workers),
		logger.Int("flush_threshold", p.cfg.FlushThreshold),
		logger.Duration("flush_interval", p.cfg.FlushInterval),
	)
}

// Stop closes the queue and waits until every worker has flushed what
// remained in it.
func (p *Pool) Stop() {
	p.stop.Do(func() {
		p.queue.Close()
		p.wg.Wait()
		p.log.Info("Analytics writer pool stopped")
	})
}

func (p *Pool) flushLoop(worker int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.Event, 0, p.cfg.FlushThreshold)

	for {
		select {
		case event := <-p.queue.events:
			batch = append(batch, event)
			if len(batch) >= p.cfg.FlushThreshold {
				p.flush(worker, batch)
				batch = make([]domain.Event, 0, p.cfg.FlushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(worker, batch)
				batch = make([]domain.Event, 0, p.cfg.FlushThreshold)
			}

		case <-p.queue.closed:
			p.drain(&batch)
			if len(batch) > 0 {
				p.flush(worker, batch)
			}
			return
		}
	}
}

// drain moves everything left in the queue into batch.
func (p *Pool) drain(batch *[]domain.Event) {
	for {
		select {
		case event := <-p.queue.events:
			*batch = append(*batch, event)
		default:
			return
		}
	}
}

func (p *Pool) flush(worker int, batch []domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FlushTimeout)
	defer cancel()

	start := time.Now()
	err := p.store.WriteEvents(ctx, batch)
	p.metrics.FlushDuration.Observe(time.Since(start).Seconds())
	p.metrics.QueueDepth.Set(float64(p.queue.Len()))

	if err != nil {
		failed := len(batch)
		var partial *storage.PartialWriteError
		if errors.As(err, &partial) {
			failed = partial.Failed
		}
		p.metrics.WriteFailures.Inc()
		p.metrics.EventsWritten.Add(float64(len(batch) - failed))
		p.log.Error("Failed to write analytics events",
			logger.Error(err),
			logger.Int("worker", worker),
			logger.Int("batch_size", len(batch)),
			logger.Int("failed", failed),
		)
		return
	}

	p.metrics.EventsWritten.Add(float64(len(batch)))
	p.log.Debug("Flushed analytics events",
		logger.Int("worker", worker),
		logger.Int("total", len(batch)),
	)
}
