package cancellations

import (
	"context"
	"sync"
	"time"

	"interviewdesk/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Runner is one reconciliation pass.
type Runner interface {
	RunOnce(ctx context.Context) (PassSummary, error)
}

// Scheduler runs a Runner every interval. A firing that arrives while a
// pass is still running is skipped. The first pass starts immediately.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      *logger.Logger

	cron   *cron.Cron
	job    cron.Job
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

func NewScheduler(runner Runner, interval time.Duration, log *logger.Logger) *Scheduler {
	log = log.Component("reconcile-scheduler")
	cronLog := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log,
		cron:     cron.New(cron.WithLogger(cronLog)),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.job = cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(s.run))
	return s
}

func (s *Scheduler) Start() {
	s.cron.Schedule(cron.Every(s.interval), s.job)
	s.cron.Start()
	go s.job.Run()
	s.log.Info("Reconciler started", "interval", s.interval)
}

// Stop cancels the running pass between messages and waits for it to
// return. No pass starts after Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.running.Wait()
	s.log.Info("Reconciler stopped")
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	if _, err := s.runner.RunOnce(s.ctx); err != nil {
		s.log.Warn("Reconciliation pass failed", "error", err)
	}
}

// cronLogger adapts the service logger to cron's logr-style interface.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
