package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	sncache "github.com/radieske/lottery-3d-platform-poc/internal/sold-numbers/cache"
	"github.com/radieske/lottery-3d-platform-poc/internal/sold-numbers/consumer"
	sharedcache "github.com/radieske/lottery-3d-platform-poc/internal/shared/cache"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/config"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/db"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/kafka"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/logger"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/metrics"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/repo"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres é a fonte da verdade usada pra reconstruir a projeção quando
	// um pagamento falha (o dígito pode seguir vendido por outro pedido)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// TTL generoso: cobre o ciclo do sorteio e a chave expira sozinha depois
	soldCache := sncache.NewSoldCache(redisClient, 45*24*time.Hour)

	placedReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicTicketPlaced, "sold-numbers-worker")
	defer placedReader.Close()
	statusReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicTicketStatusUpdated, "sold-numbers-worker")
	defer statusReader.Close()

	// Métricas Prometheus do processamento
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sold_proj_messages_consumed_total", Help: "mensagens consumidas"}, []string{"topic"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "sold_proj_applied_total", Help: "projeções aplicadas no redis"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sold_proj_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, applied, errorsBy)

	proj := &consumer.Projector{
		Log:          log,
		PlacedReader: placedReader,
		StatusReader: statusReader,
		Cache:        soldCache,
		Repo:         repo.NewPostgres(pg, cfg.Timezone),
		OnConsumed:   func(topic string) { consumed.WithLabelValues(topic).Inc() },
		OnApplied:    func() { applied.Inc() },
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("sold-numbers-worker started")
	if err := proj.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("projector stopped with error", zap.Error(err))
	}
	log.Info("sold-numbers-worker stopped")
}
