package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nexkarthq/nexkart-backend/api/routes"
	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/internal/courier"
	"github.com/nexkarthq/nexkart-backend/internal/ledger"
	"github.com/nexkarthq/nexkart-backend/internal/memberships"
	"github.com/nexkarthq/nexkart-backend/internal/orders"
	"github.com/nexkarthq/nexkart-backend/internal/referrals"
	"github.com/nexkarthq/nexkart-backend/internal/rewards"
	"github.com/nexkarthq/nexkart-backend/pkg/config"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
	"github.com/nexkarthq/nexkart-backend/pkg/migrate"
	"github.com/nexkarthq/nexkart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	if cfg.Courier.WebhookToken == "" {
		logg.Warn(context.Background(), "courier webhook token unset, callback endpoint is open")
	}

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
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create courier service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:    cfg,
			Logger:    logg,
			Orders:    ordersService,
			Ledger:    ledgerService,
			Referrals: referralsService,
			Courier:   courierService,
			Registry:  registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
