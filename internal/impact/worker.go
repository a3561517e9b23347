package impact

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/metrics"
	"github.com/finsim/market-engine/internal/model"
)

// Job is one post-commit price nudge.
type Job struct {
	TradeID        string
	Ticker         string
	SignedNotional decimal.Decimal
}

// Updater atomically rewrites an asset price. fn receives the currently
// stored asset and returns the next price, or false to skip the write.
type Updater interface {
	UpdatePrice(ctx context.Context, ticker string, fn func(model.Asset) (decimal.Decimal, bool)) (*model.Asset, error)
}

// Publisher receives prices after they change.
type Publisher interface {
	PublishPrice(asset model.Asset, reason string)
}

// Worker applies impact jobs after their trades have committed. Jobs run
// one at a time on the goroutine that calls Run; Enqueue never blocks the
// caller and a failed job is logged and dropped.
type Worker struct {
	updater Updater
	pub     Publisher
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan Job
	done   chan struct{}
}

// NewWorker creates a worker with a queue of the given size.
// Pass nil for pub if price broadcasting is not needed.
func NewWorker(u Updater, pub Publisher, size int) *Worker {
	if size <= 0 {
		size = 1024
	}
	return &Worker{
		updater: u,
		pub:     pub,
		timeout: 5 * time.Second,
		jobs:    make(chan Job, size),
		done:    make(chan struct{}),
	}
}

// Enqueue schedules a job. It reports false if the job was dropped because
// the queue is full or the worker is closed.
func (w *Worker) Enqueue(job Job) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		metrics.ImpactDropped.Inc()
		slog.Warn("price impact queue full, dropping job",
			"trade_id", job.TradeID,
			"ticker", job.Ticker,
		)
		return false
	}
}

// Run consumes jobs until Close is called and the queue is drained, or ctx
// is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.apply(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

// Close stops accepting jobs and waits for Run to finish the queued ones.
// Run must have been started.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) apply(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var before decimal.Decimal
	asset, err := w.updater.UpdatePrice(ctx, job.Ticker, func(a model.Asset) (decimal.Decimal, bool) {
		before = a.Price
		return Apply(a.Price, a.MarketCap, job.SignedNotional)
	})
	if err != nil {
		metrics.ImpactFailures.Inc()
		slog.Error("price impact failed",
			"trade_id", job.TradeID,
			"ticker", job.Ticker,
			"notional", job.SignedNotional.String(),
			"err", err,
		)
		return
	}
	if asset.Price.Equal(before) {
		return
	}

	metrics.ImpactApplied.Inc()
	slog.Info("price impact applied",
		"trade_id", job.TradeID,
		"ticker", job.Ticker,
		"notional", job.SignedNotional.String(),
		"old_price", before.String(),
		"new_price", asset.Price.String(),
	)
	if w.pub != nil {
		w.pub.PublishPrice(*asset, "trade_impact")
	}
}
