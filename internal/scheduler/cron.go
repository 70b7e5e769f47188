package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "clinicsched/internal/log"
)

// Refresher is the job driven by the cron schedule.
type Refresher interface {
	Refresh(ctx context.Context) (*Snapshot, error)
}

// cronLogger routes robfig/cron's own logging into appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

// Scheduler runs a Refresher on a standard five-field cron spec.
type Scheduler struct {
	cron *cron.Cron
	spec string
	job  Refresher
	ctx  context.Context
}

// New validates spec and prepares the schedule. Overlapping runs are
// skipped and panics in the job are recovered and logged.
func New(ctx context.Context, spec string, job Refresher) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s := &Scheduler{cron: c, spec: spec, job: job, ctx: ctx}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.job.Refresh(s.ctx); err != nil {
		appLog.Error("scheduled refresh failed", err, "schedule", s.spec)
	}
}

// Start runs the job once immediately, then on schedule, until ctx is
// canceled.
func (s *Scheduler) Start() {
	appLog.Info("scheduler starting", "schedule", s.spec)
	go s.run()
	s.cron.Start()
	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next reports when the job fires next; zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
