package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Engine event topics.
const (
	TopicItemReserved    = "liveshop.item.reserved"
	TopicItemReleased    = "liveshop.item.released"
	TopicCartStatus      = "liveshop.cart.status"
	TopicCartExpired     = "liveshop.cart.expired"
	TopicWaitlistOffered = "liveshop.waitlist.offered"
	TopicRaffleApplied   = "liveshop.raffle.applied"
)

// AllTopics lists every topic the engine publishes to, for startup creation.
var AllTopics = []string{
	TopicItemReserved,
	TopicItemReleased,
	TopicCartStatus,
	TopicCartExpired,
	TopicWaitlistOffered,
	TopicRaffleApplied,
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish writes one message to a topic. Callers treat failures as
// non-fatal: engine mutations never roll back because the event stream is
// down.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
