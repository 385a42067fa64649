package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motorlane/ms-go-entitlements/app/notification"
	"github.com/motorlane/ms-go-entitlements/app/repository"
	"github.com/motorlane/ms-go-entitlements/app/service"
	"github.com/motorlane/ms-go-entitlements/config"

	_ "github.com/go-sql-driver/mysql"
)

var (
	expireWorker       bool
	expiryNoticeWorker bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run subscription maintenance jobs",
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark lapsed active subscriptions as expired",
	Run: func(_ *cobra.Command, _ []string) {
		runJobCommand(
			"expire",
			expireWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpirationCheckInterval },
			func(s *service.LifecycleService, ctx context.Context) error {
				return s.RunExpirationBatch(ctx)
			},
		)
	},
}

var expiryNoticeCmd = &cobra.Command{
	Use:   "expiring-notice",
	Short: "Emit expiring-soon notifications for subscriptions nearing their end date",
	Run: func(_ *cobra.Command, _ []string) {
		runJobCommand(
			"expiring_notice",
			expiryNoticeWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpiryNoticeInterval },
			func(s *service.LifecycleService, ctx context.Context) error {
				return s.RunExpiryNoticeBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(expireCmd)
	jobsCmd.AddCommand(expiryNoticeCmd)

	expireCmd.Flags().BoolVar(&expireWorker, "worker", false, "Run continuously using configured interval")
	expiryNoticeCmd.Flags().BoolVar(&expiryNoticeWorker, "worker", false, "Run continuously using configured interval")
}

func runJobCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.LifecycleService, ctx context.Context) error,
) {
	cfg, lifecycleService, cleanup := mustCreateLifecycleService()
	defer cleanup()

	if worker {
		runWorker(name, intervalResolver(cfg), lifecycleService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(lifecycleService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	lifecycleService *service.LifecycleService,
	fn func(s *service.LifecycleService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(lifecycleService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(lifecycleService, ctx) })
		}
	}
}

func mustCreateLifecycleService() (*config.Config, *service.LifecycleService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	notifier := notification.NewAsyncTrigger(notification.NewLogTrigger())
	lifecycleService := service.NewLifecycleService(subscriptionRepo, planRepo, notifier, cfg.Entitlements)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, lifecycleService, cleanup
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
