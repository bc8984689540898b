package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/GAMA-00/gato-app-sub003/internal/cache"
	"github.com/GAMA-00/gato-app-sub003/internal/config"
	"github.com/GAMA-00/gato-app-sub003/internal/store/postgres"
	"github.com/GAMA-00/gato-app-sub003/internal/sweep"
)

func main() {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = newLogger(logLevel(cfg.LogLevel))
	slog.SetDefault(log)

	log.Info("starting", slog.String("sweep_schedule", cfg.SweepSchedule), slog.String("log_level", cfg.LogLevel))

	log.Info("connecting to database", slog.String("db", databaseTarget(cfg.DatabaseURL)))
	db, err := postgres.Connect(context.Background(), postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Error("database connection failed", slog.Any("err", err), slog.String("db", databaseTarget(cfg.DatabaseURL)))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("err", err))
		}
	}()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unreachable; availability caching degraded", slog.Any("err", err))
	}

	repo := postgres.NewScheduleRepo(db)
	availability := cache.NewAvailability(rdb, cfg.AvailabilityCacheTTL)
	sweeper := sweep.New(repo, availability, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Warn("sweep run failed", slog.Any("err", err))
		}
	}); err != nil {
		log.Error("invalid sweep schedule", slog.Any("err", err), slog.String("sweep_schedule", cfg.SweepSchedule))
		os.Exit(1)
	}
	c.Start()

	log.Info("scheduler started")

	<-ctx.Done()
	log.Info("shutdown signal received")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		log.Info("scheduler stopped")
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn("sweep did not finish before shutdown timeout")
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", "gato-scheduler"),
	)
}

// logLevel understands everything slog.Level does ("debug", "info", "warn",
// "error", with optional offsets) and treats anything else as info.
func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// databaseTarget reduces a connection URL to host/name for logging,
// dropping credentials and query parameters.
func databaseTarget(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "invalid"
	}
	target := u.Host
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		target += "/" + name
	}
	if target == "" {
		return "unknown"
	}
	return target
}
