package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	sncache "github.com/radieske/lottery-3d-platform-poc/internal/sold-numbers/cache"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/config"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/db"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/kafka"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/logger"
	thttp "github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/http"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/producer"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/proof"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/repo"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/session"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal("timezone", zap.String("tz", cfg.Timezone), zap.Error(err))
	}

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	if err := db.RunMigrations(pg, cfg.MigrationsDir); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers (um por tópico)
	placedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicTicketPlaced)
	defer placedWriter.Close()
	statusWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicTicketStatusUpdated)
	defer statusWriter.Close()

	// deps
	repository := repo.NewPostgres(pg, cfg.Timezone)
	proofs, err := proof.NewStore(cfg.ProofDir, cfg.ProofMaxBytes)
	if err != nil {
		log.Fatal("proof store", zap.Error(err))
	}
	carts := session.NewCartStore(rdb, time.Duration(cfg.CartTTLSeconds)*time.Second)
	soldProjection := sncache.NewSoldCache(rdb, 45*24*time.Hour)
	publ := producer.NewKafkaPublisher(placedWriter, statusWriter)

	// HTTP público
	api := thttp.NewServer(log, thttp.Settings{
		TicketPrice: cfg.TicketPrice,
		Location:    loc,
		JWTSecret:   []byte(cfg.JWTSecret),
	}, repository, proofs, carts, soldProjection, publ)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.PingContext(r.Context()); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, metricsMux)
	}()

	log.Info("ticket-service listening",
		zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)),
		zap.String("timezone", cfg.Timezone),
		zap.Int64("ticket_price", cfg.TicketPrice),
	)
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
