// Package queue implements messaging.MessageSender against Kafka via
// github.com/IBM/sarama, adapted from the teacher's pkg/db/queue/queue.go.
// The teacher's sender marshals to protobuf against a generated schema that
// was not retrieved into this pack; a DealMessage has no such schema, so
// this sends a plain JSON encoding of the wire struct instead — everything
// else (topic/broker package vars, a sync producer per send) follows the
// teacher's shape.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/silvermoon-h/matching-engine-2/pkg/messaging"
)

var (
	brokerList = "localhost:9092"
	topic      = "matching-engine-deals"
)

// SetBrokerList overrides the Kafka broker address used by new senders.
func SetBrokerList(addr string) { brokerList = addr }

// SetTopic overrides the Kafka topic deals are published to.
func SetTopic(t string) { topic = t }

// Sender implements messaging.MessageSender against a Kafka sync producer.
type Sender struct {
	producer sarama.SyncProducer
}

// NewSender dials brokerList and returns a ready Sender.
func NewSender() (*Sender, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer([]string{brokerList}, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &Sender{producer: producer}, nil
}

// newSenderWithProducer wraps an already-constructed producer, letting
// tests inject a mock in place of a real broker connection.
func newSenderWithProducer(producer sarama.SyncProducer) *Sender {
	return &Sender{producer: producer}
}

// SendDealMessage publishes deal to the configured topic, keyed by product
// id so all of one instrument's deals land on the same partition and stay
// in sequence order.
func (s *Sender) SendDealMessage(deal *messaging.DealMessage) error {
	body, err := json.Marshal(deal)
	if err != nil {
		return fmt.Errorf("failed to marshal deal message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", deal.ProductID)),
		Value: sarama.ByteEncoder(body),
	}

	_, _, err = s.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send deal message to Kafka: %w", err)
	}
	return nil
}

// Close releases the underlying producer.
func (s *Sender) Close() error {
	return s.producer.Close()
}

var _ messaging.MessageSender = (*Sender)(nil)
