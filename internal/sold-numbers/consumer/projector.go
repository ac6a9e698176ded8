package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/repo"
	"github.com/radieske/lottery-3d-platform-poc/pkg/contracts/events"
)

// Sink é a projeção de números vendidos alimentada pelo worker.
type Sink interface {
	MarkSold(ctx context.Context, drawDate string, digits []string) error
	Rebuild(ctx context.Context, drawDate string, digits []string) error
}

// Source é a visão do banco usada para reconstruir a projeção de um sorteio.
type Source interface {
	SoldDigits(ctx context.Context, drawDate string) ([]string, error)
}

// Projector consome os eventos de bilhete do Kafka e mantém a projeção de
// dígitos vendidos por sorteio no Redis. Callbacks de métricas podem ser
// usadas para monitoramento de cada etapa.
type Projector struct {
	Log          *zap.Logger
	PlacedReader *kafka.Reader
	StatusReader *kafka.Reader
	Cache        Sink
	Repo         Source

	OnConsumed func(topic string) // métricas (counter++)
	OnApplied  func()             // métricas
	OnError    func(string)       // métricas por fase
}

// Run inicia os dois loops de consumo; retorna no primeiro erro fatal ou no
// cancelamento do contexto.
func (p *Projector) Run(ctx context.Context) error {
	errc := make(chan error, 2)
	go func() { errc <- p.consume(ctx, p.PlacedReader, "ticket_placed", p.applyPlaced) }()
	go func() { errc <- p.consume(ctx, p.StatusReader, "ticket_status_updated", p.applyStatus) }()
	return <-errc
}

func (p *Projector) consume(ctx context.Context, r *kafka.Reader, topic string, apply func(context.Context, []byte) error) error {
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.String("topic", topic), zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed(topic)
		}

		if err := apply(ctx, m.Value); err != nil {
			p.Log.Warn("apply failed", zap.String("topic", topic), zap.Error(err))
			continue
		}
		if p.OnApplied != nil {
			p.OnApplied()
		}
	}
}

func (p *Projector) applyPlaced(ctx context.Context, value []byte) error {
	var ev events.TicketPlaced
	if err := json.Unmarshal(value, &ev); err != nil {
		if p.OnError != nil {
			p.OnError("decode")
		}
		return err
	}
	if err := p.Cache.MarkSold(ctx, ev.DrawDate, ev.Digits); err != nil {
		if p.OnError != nil {
			p.OnError("cache")
		}
		return err
	}
	return nil
}

func (p *Projector) applyStatus(ctx context.Context, value []byte) error {
	var ev events.TicketStatusUpdated
	if err := json.Unmarshal(value, &ev); err != nil {
		if p.OnError != nil {
			p.OnError("decode")
		}
		return err
	}

	// completed confirma a venda. failed não pode simplesmente tirar os
	// dígitos do conjunto: sem reserva exclusiva, outro pedido não-failed
	// pode segurar o mesmo dígito. A projeção é reconstruída do banco.
	var err error
	switch ev.PaymentStatus {
	case repo.StatusFailed:
		digits, srcErr := p.Repo.SoldDigits(ctx, ev.DrawDate)
		if srcErr != nil {
			if p.OnError != nil {
				p.OnError("source")
			}
			return srcErr
		}
		err = p.Cache.Rebuild(ctx, ev.DrawDate, digits)
	case repo.StatusCompleted:
		err = p.Cache.MarkSold(ctx, ev.DrawDate, ev.Digits)
	default:
		p.Log.Warn("unexpected payment status in event", zap.String("status", ev.PaymentStatus))
		return nil
	}
	if err != nil {
		if p.OnError != nil {
			p.OnError("cache")
		}
		return err
	}
	return nil
}
