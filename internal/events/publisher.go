package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/order"
)

const DefaultOrderCreatedTopic = "order.created"

type OrderCreatedEvent struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	OrderDate   time.Time       `json:"order_date"`
	EventTime   time.Time       `json:"event_time"`
}

// NewOrderCreatedEvent builds the event for a stored order.
func NewOrderCreatedEvent(o order.Order, now time.Time) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		TotalAmount: o.Total,
		Status:      o.Status.String(),
		OrderDate:   o.OrderDate,
		EventTime:   now,
	}
}

type Publisher interface {
	PublishOrderCreated(ctx context.Context, o order.Order) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultOrderCreatedTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, o order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := NewOrderCreatedEvent(o, time.Now().UTC())
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order created event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		log.Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to send message to Kafka")
		return fmt.Errorf("failed to publish order created event: %w", err)
	}

	log.Info().
		Str("topic", p.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Str("order_id", event.OrderID).
		Msg("Event published to Kafka")

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, order.Order) error { return nil }

func (NopPublisher) Close() error { return nil }
