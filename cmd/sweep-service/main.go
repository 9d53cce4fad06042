package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ColeMorton/trading-sub010/internal/backtest"
	"github.com/ColeMorton/trading-sub010/internal/broadcast"
	"github.com/ColeMorton/trading-sub010/internal/config"
	"github.com/ColeMorton/trading-sub010/internal/database"
	"github.com/ColeMorton/trading-sub010/internal/health"
	"github.com/ColeMorton/trading-sub010/internal/logger"
	"github.com/ColeMorton/trading-sub010/internal/metrics"
	"github.com/ColeMorton/trading-sub010/internal/query"
	"github.com/ColeMorton/trading-sub010/internal/registry"
	"github.com/ColeMorton/trading-sub010/internal/repository"
	"github.com/ColeMorton/trading-sub010/internal/scheduler"
	"github.com/ColeMorton/trading-sub010/internal/selection"
	"github.com/ColeMorton/trading-sub010/internal/server"
	"github.com/ColeMorton/trading-sub010/internal/sweep"
	"github.com/ColeMorton/trading-sub010/internal/webhook"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	repos      *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
}

var rootCmd = &cobra.Command{
	Use:   "sweep-service",
	Short: "Run the parameter sweep backtest service",
	Long:  `Serves the sweep API: job submission, live progress streaming, result persistence and curated best-parameter selection.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		runService()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	appLog = logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
		"commit":      GitCommit,
		"build_date":  BuildDate,
	}).Info("Sweep service starting")

	metrics.InitRegistry()

	var err error
	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	appLog.Info("Database connection established")
	return nil
}

func runService() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer db.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	broadcaster := broadcast.NewBroadcaster(cfg.Sweep.SubscriberBuffer, appLog)
	reg := registry.NewRegistry(appLog)

	notifier := webhook.NewNotifier(time.Duration(cfg.Webhook.TimeoutSeconds)*time.Second, appLog)
	reg.SetTerminalHook(sweep.NewTerminalHook(reg, broadcaster, notifier, repos.SweepResult, repos.BestSelection, appLog))

	evaluator := backtest.NewEvaluator(appLog)
	persister := sweep.NewPersister(repos, cfg.Sweep.PersistBatchSize, appLog)
	selector := selection.NewEngine(appLog)
	executor := sweep.NewExecutor(reg, broadcaster, persister, repos, selector, evaluator, &cfg.Sweep, appLog)

	querySvc := query.NewService(repos, appLog)
	apiServer := server.NewServer(&cfg.Server, reg, broadcaster, querySvc, executor, appLog)

	sched := scheduler.NewScheduler(reg, broadcaster, appLog)
	if err := sched.ScheduleBudgetEnforcement(time.Minute, cfg.Sweep.MaxJobDuration()); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule job budget enforcement")
	}
	if err := sched.ScheduleTopicPruning(5*time.Minute, cfg.Sweep.TopicRetention()); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule topic pruning")
	}
	if err := sched.Start(); err != nil {
		appLog.WithError(err).Fatal("Failed to start scheduler")
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			appLog.WithError(err).Error("Scheduler stop failed")
		}
	}()

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx)
	}

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Logger:      appLog,
		DB:          db,
		RunningJobs: func() int { return len(reg.Running()) },
	})
	if err := healthServer.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start(ctx)
	}()
	healthServer.SetReady(true)

	select {
	case sig := <-sigChan:
		appLog.WithField("signal", sig.String()).Info("Shutdown signal received")
		healthServer.SetReady(false)
		cancel()
		if err := <-serverErr; err != nil {
			appLog.WithError(err).Error("API server shutdown error")
		}
	case err := <-serverErr:
		if err != nil {
			appLog.WithError(err).Error("API server failed")
		}
	}

	appLog.Info("Sweep service stopped")
}

func startMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	go func() {
		appLog.WithField("addr", srv.Addr).Info("Metrics server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.WithError(err).Error("Metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
