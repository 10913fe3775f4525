package poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the poller on a fixed period. SkipIfStillRunning is
// the tick liveness guard: a tick that is still busy when the next one
// is due suppresses it, so no channel is processed by two ticks at once.
type Scheduler struct {
	cron   *cron.Cron
	poller *Poller
	logger *slog.Logger
}

func NewScheduler(p *Poller, logger *slog.Logger) *Scheduler {
	log := logger.With("component", "scheduler")
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log}),
			cron.SkipIfStillRunning(cronLogger{log}),
		)),
		poller: p,
		logger: log,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.poller.cfg.Interval)
	_, err := s.cron.AddFunc(spec, func() {
		tickCtx, cancel := context.WithTimeout(ctx, s.poller.cfg.TickTimeout)
		defer cancel()

		if _, err := s.poller.Tick(tickCtx); err != nil {
			s.logger.Error("poll tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule poll job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.poller.cfg.Interval)
	return nil
}

// Stop halts scheduling and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to the cron logging contract.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
