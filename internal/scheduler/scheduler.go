// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investtracker/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrSkipped may be returned by a job that declined to run this tick.
var ErrSkipped = errors.New("job skipped")

// Job represents a scheduled job.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs. A job never overlaps itself: a tick
// that arrives while the previous run is still going is dropped.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.SugaredLogger
	ctx  context.Context
	stop context.CancelFunc
}

// New creates a new scheduler.
func New() *Scheduler {
	log := logger.Named("scheduler")
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:  log,
		ctx:  ctx,
		stop: cancel,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// AddJob registers job on schedule. Schedule examples:
//   - "@every 15m"   - every 15 minutes
//   - "*/5 * * * *"  - every 5 minutes on the clock
//   - "0 9 * * 1-5"  - 9 AM weekdays
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.RunNow(job) })
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name(), err)
	}
	s.log.Infow("job registered", "job", job.Name(), "schedule", schedule)
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) {
	start := time.Now()
	s.log.Debugw("running job", "job", job.Name())

	err := job.Run(s.ctx)
	switch {
	case errors.Is(err, ErrSkipped):
		s.log.Infow("job skipped", "job", job.Name(), "reason", err)
	case err != nil:
		s.log.Errorw("job failed", "job", job.Name(), "error", err, "duration", time.Since(start))
	default:
		s.log.Debugw("job completed", "job", job.Name(), "duration", time.Since(start))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
