// Package retention runs scheduled cleanup of old execution logs.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zapflow/zapflow/pkg/persistence"
)

const (
	// DefaultSchedule runs the sweep daily at 03:00.
	DefaultSchedule = "0 3 * * *"

	// DefaultMaxAge keeps ninety days of execution logs.
	DefaultMaxAge = 90 * 24 * time.Hour

	sweepTimeout = 5 * time.Minute
)

// Sweeper purges execution logs older than a retention window on a cron
// schedule.
type Sweeper struct {
	logs     persistence.LogRepository
	logger   *slog.Logger
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
}

type Option func(*Sweeper)

func WithSchedule(schedule string) Option {
	return func(s *Sweeper) {
		s.schedule = schedule
	}
}

func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Sweeper) {
		s.maxAge = maxAge
	}
}

func NewSweeper(logs persistence.LogRepository, logger *slog.Logger, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		logs:     logs,
		logger:   logger.With("module", "retention"),
		schedule: DefaultSchedule,
		maxAge:   DefaultMaxAge,
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	return sweeper
}

// Start schedules the sweep and begins running it. It returns an error if
// the schedule expression does not parse.
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Log retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Log retention sweeper started", "schedule", s.schedule, "max_age", s.maxAge.String())

	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
}

// Sweep purges logs older than the retention window once, returning how
// many rows were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.maxAge)

	purged, err := s.logs.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Purged old execution logs", "purged", purged, "cutoff", cutoff.Format(time.RFC3339))

	return purged, nil
}
