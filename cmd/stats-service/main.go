package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	sharedcache "github.com/radieske/lottery-3d-platform-poc/internal/shared/cache"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/config"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/db"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/logger"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/metrics"
	scache "github.com/radieske/lottery-3d-platform-poc/internal/stats-service/cache"
	shttp "github.com/radieske/lottery-3d-platform-poc/internal/stats-service/http"
	"github.com/radieske/lottery-3d-platform-poc/internal/stats-service/repo"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal("timezone", zap.String("tz", cfg.Timezone), zap.Error(err))
	}

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer redisClient.Close()

	readRepo := &repo.ReadRepo{DB: pg, TZ: cfg.Timezone}
	summaryCache := scache.New(redisClient)

	api := shttp.NewServer(log, readRepo, summaryCache, loc)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	log.Info("stats-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
