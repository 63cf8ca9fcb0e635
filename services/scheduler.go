package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler triggers a job on a cron schedule. A tick that arrives while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	manual  sync.WaitGroup
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	clog := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		logger: logger,
	}
}

// Add registers job under the given cron expression. The job receives ctx.
func (s *Scheduler) Add(ctx context.Context, spec string, job func(ctx context.Context)) error {
	if _, err := s.cron.AddFunc(spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.logger.Info("Job scheduled", zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("Scheduler started")
}

// Stop halts the schedule and waits for running jobs to return, including
// those started by RunNow.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.manual.Wait()
	s.running = false
	s.logger.Info("Scheduler stopped")
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// RunNow fires every scheduled job once, outside the schedule. The skip
// rule still applies, so it never overlaps a scheduled run.
func (s *Scheduler) RunNow() {
	for _, e := range s.cron.Entries() {
		s.manual.Add(1)
		go func(job cron.Job) {
			defer s.manual.Done()
			job.Run()
		}(e.WrappedJob)
	}
}
