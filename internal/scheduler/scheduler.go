package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DailySpec runs at 10:00, 15:00 and 19:00.
	DailySpec             = "0 10,15,19 * * *"
	Timezone              = "KST"
	TimezoneOffsetSeconds = 9 * 60 * 60
	DefaultInitialDelay   = 10 * time.Second
	defaultJobTimeout     = time.Hour
)

type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Locker keeps a job from running on two instances at once.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

type Scheduler struct {
	ctx          context.Context
	cron         *cron.Cron
	jobs         []Job
	running      map[string]*sync.Mutex
	locker       Locker
	initialDelay time.Duration
	initial      sync.WaitGroup
	stop         chan struct{}
	stopOnce     sync.Once
	log          *slog.Logger
}

// New builds a scheduler for jobs. locker is optional; a zero initialDelay
// disables the run right after Start.
func New(
	ctx context.Context,
	jobs []Job,
	locker Locker,
	initialDelay time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	running := make(map[string]*sync.Mutex, len(jobs))
	for i := range jobs {
		if jobs[i].Timeout <= 0 {
			jobs[i].Timeout = defaultJobTimeout
		}
		running[jobs[i].Name] = &sync.Mutex{}
	}

	return &Scheduler{
		ctx:          ctx,
		cron:         c,
		jobs:         jobs,
		running:      running,
		locker:       locker,
		initialDelay: initialDelay,
		stop:         make(chan struct{}),
		log:          log,
	}
}

func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Spec, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("add job %s: %w", job.Name, err)
		}
	}

	s.cron.Start()

	if s.initialDelay > 0 {
		s.initial.Go(s.runInitial)
	}

	return nil
}

// Stop stops scheduling and waits for running jobs, including the initial run.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	<-s.cron.Stop().Done()
	s.initial.Wait()
}

// runInitial runs every job once after the initial delay, each in its own
// goroutine so a long job does not hold back the others.
func (s *Scheduler) runInitial() {
	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.stop:
		return
	case <-s.ctx.Done():
		return
	}

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Go(func() { s.runJob(job) })
	}
	wg.Wait()
}

func (s *Scheduler) runJob(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, job.Timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err(),
			"job", job.Name)
		return
	default:
	}

	running := s.running[job.Name]
	if !running.TryLock() {
		s.log.InfoContext(ctx, "Job is still running, skipping", "job", job.Name)
		return
	}
	defer running.Unlock()

	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, job.Name, job.Timeout)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to acquire job lock",
				"error", err,
				"job", job.Name)
			return
		}

		if !acquired {
			s.log.InfoContext(ctx, "Job is locked by another instance, skipping", "job", job.Name)
			return
		}

		defer func() {
			// The job context may be done already.
			releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer releaseCancel()

			if err = s.locker.Release(releaseCtx, job.Name); err != nil {
				s.log.ErrorContext(ctx, "Failed to release job lock",
					"error", err,
					"job", job.Name)
			}
		}()
	}

	started := time.Now()
	s.log.InfoContext(ctx, "Job is started", "job", job.Name)

	if err := job.Run(ctx); err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelWarn
		}

		s.log.Log(ctx, level, "Failed to run job",
			"error", err,
			"job", job.Name,
			"elapsed", time.Since(started))
		return
	}

	s.log.InfoContext(ctx, "Job is finished",
		"job", job.Name,
		"elapsed", time.Since(started))
}
