package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/internal/courier"
	"github.com/nexkarthq/nexkart-backend/internal/cron"
	"github.com/nexkarthq/nexkart-backend/internal/ledger"
	"github.com/nexkarthq/nexkart-backend/internal/memberships"
	"github.com/nexkarthq/nexkart-backend/internal/orders"
	"github.com/nexkarthq/nexkart-backend/internal/referrals"
	"github.com/nexkarthq/nexkart-backend/internal/rewards"
	"github.com/nexkarthq/nexkart-backend/pkg/config"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
	"github.com/nexkarthq/nexkart-backend/pkg/metrics"
	"github.com/nexkarthq/nexkart-backend/pkg/migrate"
	"github.com/nexkarthq/nexkart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "courier-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "courier-worker"

	logg = logger.New(logger.Options{
		ServiceName: "courier-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	recorder, err := activity.NewRecorder(activity.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create activity recorder", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Activity: recorder,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(dbClient.DB()),
		DB:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	referralsService, err := referrals.NewService(referrals.ServiceParams{
		Repo:     referrals.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Activity: recorder,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create referral service", err)
		os.Exit(1)
	}

	membershipsService, err := memberships.NewService(memberships.ServiceParams{
		Repo:     memberships.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Activity: recorder,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership service", err)
		os.Exit(1)
	}

	rewardEngine, err := rewards.NewEngine(rewards.EngineParams{
		Referrals:   referrals.NewRepository(dbClient.DB()),
		Ledger:      ledgerService,
		Memberships: membershipsService,
		Orders:      ordersService,
		DB:          dbClient,
		Activity:    recorder,
		Config:      cfg.Rewards,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reward engine", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	courierService, err := courier.NewService(courier.ServiceParams{
		Orders:      orders.NewRepository(dbClient.DB()),
		OrderStatus: ordersService,
		Client:      courier.NewClient(cfg.Courier),
		Rewards:     rewardEngine,
		DB:          dbClient,
		Activity:    recorder,
		Dedup:       redisClient,
		DedupTTL:    cfg.Rewards.WebhookDedupTTL,
		SweepBatch:  cfg.Sync.BatchSize,
		Metrics:     jobMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create courier service", err)
		os.Exit(1)
	}

	syncJob, err := cron.NewCourierSyncJob(cron.CourierSyncJobParams{
		Logger:  logg,
		Courier: courierService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create courier sync job", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewReferralExpiryJob(cron.ReferralExpiryJobParams{
		Logger:    logg,
		Referrals: referralsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create referral expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("courier-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(syncJob, expiryJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Sync.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting courier worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "courier worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "courier worker shutting down gracefully")
}
