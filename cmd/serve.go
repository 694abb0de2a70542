package main

import (
	"context"
	"fmt"
	"time"

	"assemblydigest/internal/lock"
	"assemblydigest/internal/scheduler"
	"assemblydigest/internal/updater"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	meetingsJobTimeout = 3 * time.Hour
	billsJobTimeout    = time.Hour
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled meeting and bill updates",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger(cmd, false)
	start := time.Now()

	ctx, cancel := signalContext(cmd.Context(), log)
	defer cancel()

	cfg, err := loadConfig(ctx, log)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer a.closeDatabase(context.WithoutCancel(ctx), db)

	source := a.assemblyClient()

	meetings := updater.NewMeetings(source, db, a.loader, a.pipeline, a.publisher(ctx), updater.MeetingsConfig{
		DocumentConcurrency: cfg.DocumentConcurrency,
	}, log)
	bills := a.billsUpdater(source, db)

	var locker scheduler.Locker
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				log.ErrorContext(ctx, "Failed to close redis client",
					"error", closeErr,
					"redisAddr", cfg.RedisAddr)
			}
		}()

		redisLock := lock.NewRedis(client)
		if err = redisLock.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}

		locker = redisLock
		log.InfoContext(ctx, "Redis lock is initialized",
			"redisAddr", cfg.RedisAddr,
			"ownerID", redisLock.OwnerID())
	}

	sched := scheduler.New(ctx, []scheduler.Job{
		{
			Name:    "meetings",
			Spec:    cfg.MeetingSchedule,
			Timeout: meetingsJobTimeout,
			Run: func(ctx context.Context) error {
				err := meetings.Update(ctx)
				// Analyses run on ctx, so the job ends only after them.
				meetings.Wait()

				return err
			},
		},
		{
			Name:    "bills",
			Spec:    cfg.BillSchedule,
			Timeout: billsJobTimeout,
			Run:     bills.Update,
		},
	}, locker, scheduler.DefaultInitialDelay, log)

	if err = sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.InfoContext(ctx, "Scheduler is started",
		"meetingSchedule", cfg.MeetingSchedule,
		"billSchedule", cfg.BillSchedule,
		"timezone", scheduler.Timezone)

	<-ctx.Done()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}
