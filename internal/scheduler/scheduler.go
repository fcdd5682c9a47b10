// Package scheduler repeats a job on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Scheduler runs one job on a standard five-field cron expression.
// A tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron  *cron.Cron
	jobID cron.EntryID
}

// New parses expr and registers job. Every run of job receives ctx.
func New(ctx context.Context, expr string, job func(context.Context)) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job must not be nil")
	}

	logger := cronLogger{log.Logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(expr, func() { job(ctx) })
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return &Scheduler{cron: c, jobID: id}, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	log.Info().Time("next_run", s.cron.Entry(s.jobID).Next).Msg("Scheduler started")

	<-ctx.Done()

	log.Info().Msg("Scheduler stopping, waiting for running job")
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// cronLogger routes cron's own logging to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
