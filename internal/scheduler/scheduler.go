// Package scheduler runs the expiry sweep on a cron schedule inside the
// server process.
package scheduler

import (
	"context"
	"time"

	"tipwall/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper is the job the scheduler runs.
type Sweeper interface {
	Run(ctx context.Context) (*service.SweepReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     logrus.FieldLogger
}

// New parses schedule (standard five-field cron or a descriptor like
// "@every 5m") and returns a stopped scheduler. Overlapping runs are skipped.
func New(schedule string, sweeper Sweeper, timeout time.Duration, log logrus.FieldLogger) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	s := &Scheduler{sweeper: sweeper, timeout: timeout, log: log}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})))
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	report, err := s.sweeper.Run(ctx)
	if err != nil {
		s.log.WithError(err).Error("[Scheduler] Sweep failed")
		return
	}
	if len(report.Failed) > 0 {
		s.log.WithField("failed", len(report.Failed)).Warn("[Scheduler] Sweep finished with failures")
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for a running sweep, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("[Scheduler] Stop timed out with a sweep still running")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug("[Scheduler] " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error("[Scheduler] " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}
