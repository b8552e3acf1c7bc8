// Package events publishes finished purchase attempts to Kafka.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/navid-fn/tradesniper/internal/faulttolerance"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// Producer is the subset of *kafka.Producer the publisher uses.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// AttemptMessage is the JSON value of every published message.
type AttemptMessage struct {
	models.AttemptRecord
	DurationMS int64 `json:"duration_ms"`
}

// Publisher writes one message per attempt, keyed by trade id.
type Publisher struct {
	producer Producer
	topic    string
	breaker  *faulttolerance.Breaker
	logger   *logrus.Logger
}

// NewKafkaPublisher connects a producer to broker and starts the delivery report loop.
func NewKafkaPublisher(broker, topic string, breaker *faulttolerance.Breaker, logger *logrus.Logger) (*Publisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
		"acks":              "1",
		"linger.ms":         50,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	logger.WithFields(logrus.Fields{"broker": broker, "topic": topic}).Info("Kafka producer initialized")

	p := NewPublisher(producer, topic, breaker, logger)
	go p.deliveryReport()
	return p, nil
}

func NewPublisher(producer Producer, topic string, breaker *faulttolerance.Breaker, logger *logrus.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, breaker: breaker, logger: logger}
}

// deliveryReport logs failed deliveries until the producer is closed.
func (p *Publisher) deliveryReport() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.WithError(ev.TopicPartition.Error).Error("attempt message delivery failed")
			}
		case kafka.Error:
			p.logger.WithError(ev).Warn("kafka producer error")
		}
	}
}

// Report implements teleport.Reporter. Produce only enqueues, so this never blocks on the broker.
func (p *Publisher) Report(rec models.AttemptRecord) {
	if err := p.Publish(rec); err != nil {
		p.logger.WithError(err).WithField("attempt", rec.ID).Warn("failed to publish attempt")
	}
}

// Publish encodes rec and hands it to the producer behind the breaker.
func (p *Publisher) Publish(rec models.AttemptRecord) error {
	value, err := json.Marshal(AttemptMessage{AttemptRecord: rec, DurationMS: rec.Duration().Milliseconds()})
	if err != nil {
		return err
	}

	return p.breaker.Execute(func() error {
		return p.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
			Key:            []byte(rec.TradeID),
			Value:          value,
			Headers:        []kafka.Header{{Key: "state", Value: []byte(rec.State.String())}},
		}, nil)
	})
}

// Close flushes outstanding messages for up to five seconds.
func (p *Publisher) Close() {
	if left := p.producer.Flush(5000); left > 0 {
		p.logger.WithField("pending", left).Warn("Kafka producer closed with undelivered messages")
	}
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
