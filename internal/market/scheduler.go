package market

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the simulator's jobs on cron schedules with seconds
// resolution, e.g. "0 */5 * * * *".
type Scheduler struct {
	cron    *cron.Cron
	baseCtx context.Context
}

// NewScheduler registers the tick and close jobs. An empty schedule disables
// that job.
func NewScheduler(ctx context.Context, sim *Simulator, tickSpec, closeSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		baseCtx: ctx,
	}
	if tickSpec != "" {
		if err := s.add(tickSpec, "tick", func(ctx context.Context) error {
			_, err := sim.Tick(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if closeSpec != "" {
		if err := s.add(closeSpec, "close_markets", func(ctx context.Context) error {
			_, err := sim.CloseExpired(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(spec, name string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.baseCtx); err != nil {
			slog.Error("scheduled job failed", "job", name, "err", err)
		}
	})
	return err
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	slog.Info("cron started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("cron stopped")
}
