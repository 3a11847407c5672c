// Package publish ships book events to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/openorder/book"
)

// KafkaPublisher implements book.Publisher over a single Kafka topic.
// Messages are keyed by pair so one pair's events stay in one partition,
// preserving the book's sequence order for consumers.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: logger,
	}
}

type envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

func (p *KafkaPublisher) PublishClientOrder(ev book.ClientOrderEvent) {
	p.send(ev.Pair, envelope{Kind: "client_order", Payload: ev})
}

func (p *KafkaPublisher) PublishMarketOrder(ev book.MarketOrderEvent) {
	p.send(ev.Pair, envelope{Kind: "market_order", Payload: ev})
}

func (p *KafkaPublisher) PublishClientPayment(ev book.ClientPaymentEvent) {
	p.send(ev.Pair, envelope{Kind: "client_payment", Payload: ev})
}

func (p *KafkaPublisher) send(pair string, env envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("marshal event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(pair),
		Value: value,
	})
	if err != nil {
		p.logger.Error("publish event",
			zap.String("pair", pair),
			zap.String("kind", env.Kind),
			zap.Error(err))
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
