package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nergy-se/gtimonitor/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one unit of scheduled work. A returned error is logged and the job stays scheduled.
type Job func(ctx context.Context) error

type fixedJob struct {
	name    string
	initial time.Duration
	period  time.Duration
	job     Job
}

// Scheduler runs every job on its own goroutine. A job never overlaps itself. Cron triggers
// that fire while the previous run is still going are dropped, so a slow run delays its own
// next run and nothing else.
type Scheduler struct {
	cron  *cron.Cron
	fixed []fixedJob
	names map[cron.EntryID]string
	wg    *sync.WaitGroup
	ctx   context.Context
}

func New() *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		names: make(map[cron.EntryID]string),
		wg:    &sync.WaitGroup{},
		ctx:   context.Background(),
	}
}

// FixedDelay runs job after initial and then period after each run finishes.
func (s *Scheduler) FixedDelay(name string, initial, period time.Duration, job Job) {
	s.fixed = append(s.fixed, fixedJob{name: name, initial: initial, period: period, job: job})
}

// Cron runs job on a cron spec with a seconds field, for example "0 */3 * * * *".
func (s *Scheduler) Cron(name, spec string, job Job) error {
	id, err := s.cron.AddFunc(spec, func() {
		run(s.ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("error scheduling %s with %q: %w", name, spec, err)
	}
	s.names[id] = name
	return nil
}

// Start must be called once after all jobs are added. Cancelling ctx stops all triggers.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	for _, j := range s.fixed {
		s.wg.Add(1)
		go s.fixedLoop(ctx, j)
	}

	s.cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

// Wait blocks until ctx is cancelled and running jobs have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Next returns the next run time of each cron job.
func (s *Scheduler) Next() map[string]time.Time {
	next := make(map[string]time.Time)
	for _, e := range s.cron.Entries() {
		next[s.names[e.ID]] = e.Next
	}
	return next
}

func (s *Scheduler) fixedLoop(ctx context.Context, j fixedJob) {
	defer s.wg.Done()
	timer := time.NewTimer(j.initial)
	defer timer.Stop()
	logrus.Debugf("schedule: %s first run in %s then every %s", j.name, j.initial, j.period)
	for {
		select {
		case <-timer.C:
			run(ctx, j.name, j.job)
			timer.Reset(j.period)
		case <-ctx.Done():
			return
		}
	}
}

func run(ctx context.Context, name string, job Job) {
	logger := logrus.WithFields(logrus.Fields{
		"job": name,
		"run": uuid.NewString(),
	})
	defer func() {
		if r := recover(); r != nil {
			metrics.JobRuns.WithLabelValues(name, "panic").Inc()
			logger.Errorf("schedule: panic: %v", r)
		}
	}()

	start := time.Now()
	err := job(ctx)
	metrics.JobRuns.WithLabelValues(name, metrics.Result(err)).Inc()
	if err != nil {
		logger.Errorf("schedule: %s", err)
		return
	}
	logger.Tracef("schedule: done in %s", time.Since(start))
}

// cronLogger sends cron's own logging to logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(fields(keysAndValues)).Debugf("cron: %s", msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logrus.WithFields(fields(keysAndValues)).Errorf("cron: %s: %s", msg, err)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
