// Package scheduler drives the recurring work: weekday advisory runs, nightly
// reconciliation, and database maintenance.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled unit of work. Run errors are logged, never fatal.
type Job struct {
	Name string
	Spec string // cron expression
	Run  func() error
}

// Scheduler wraps a cron runner with structured logging per job.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a scheduler. Jobs never overlap themselves: a tick that fires
// while the previous run of the same job is still going is skipped.
func New(log zerolog.Logger) *Scheduler {
	schedLog := log.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger{schedLog}),
			cron.Recover(cronLogger{schedLog}),
		)),
		log: schedLog,
	}
}

// Register adds a job to the schedule.
func (s *Scheduler) Register(job Job) error {
	jobLog := s.log.With().Str("job", job.Name).Logger()
	_, err := s.cron.AddFunc(job.Spec, func() {
		jobLog.Info().Msg("Job starting")
		if err := job.Run(); err != nil {
			jobLog.Error().Err(err).Msg("Job failed")
			return
		}
		jobLog.Info().Msg("Job finished")
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("Job registered")
	return nil
}

// Start begins executing jobs on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// cronLogger adapts zerolog to the cron logger interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
