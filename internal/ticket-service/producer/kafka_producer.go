package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/lottery-3d-platform-poc/pkg/contracts/events"
)

type KafkaPublisher struct {
	PlacedWriter *kafka.Writer
	StatusWriter *kafka.Writer
}

func NewKafkaPublisher(placed, status *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{PlacedWriter: placed, StatusWriter: status}
}

func (p *KafkaPublisher) PublishTicketPlaced(ctx context.Context, e events.TicketPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.PlacedWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.OrderID), Value: b})
}

func (p *KafkaPublisher) PublishTicketStatusUpdated(ctx context.Context, e events.TicketStatusUpdated) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.StatusWriter.WriteMessages(ctx, kafka.Message{Value: b})
}
