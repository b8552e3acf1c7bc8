package events

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/navid-fn/tradesniper/internal/faulttolerance"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

type fakeProducer struct {
	messages []*kafka.Message
	err      error
	events   chan kafka.Event
	closed   bool
}

func (f *fakeProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) Events() chan kafka.Event { return f.events }
func (f *fakeProducer) Flush(int) int { return 0 }
func (f *fakeProducer) Close() { f.closed = true }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPublishEncodesAttempt(t *testing.T) {
	producer := &fakeProducer{}
	breaker := faulttolerance.NewBreaker(faulttolerance.BreakerConfig{MaxFailures: 3}, testLogger())
	p := NewPublisher(producer, "attempts", breaker, testLogger())

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tradeID := strings.Repeat("f", 64)
	p.Report(models.AttemptRecord{
		ID:         "a1",
		TradeID:    tradeID,
		State:      models.StateSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(1200 * time.Millisecond),
	})

	if len(producer.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(producer.messages))
	}
	msg := producer.messages[0]
	if *msg.TopicPartition.Topic != "attempts" {
		t.Errorf("Expected topic attempts, got %s", *msg.TopicPartition.Topic)
	}
	if string(msg.Key) != tradeID {
		t.Errorf("Expected key %s, got %s", tradeID, msg.Key)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["state"] != "succeeded" {
		t.Errorf("Expected state succeeded, got %v", decoded["state"])
	}
	if decoded["duration_ms"] != float64(1200) {
		t.Errorf("Expected duration 1200, got %v", decoded["duration_ms"])
	}
}

func TestPublishOpensBreaker(t *testing.T) {
	producer := &fakeProducer{err: errors.New("queue full")}
	breaker := faulttolerance.NewBreaker(faulttolerance.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Hour}, testLogger())
	p := NewPublisher(producer, "attempts", breaker, testLogger())

	for i := 0; i < 2; i++ {
		if err := p.Publish(models.AttemptRecord{ID: "x"}); err == nil {
			t.Fatal("Expected produce error")
		}
	}
	if err := p.Publish(models.AttemptRecord{ID: "x"}); !errors.Is(err, faulttolerance.ErrBreakerOpen) {
		t.Errorf("Expected ErrBreakerOpen, got %v", err)
	}
}

func TestClose(t *testing.T) {
	producer := &fakeProducer{}
	p := NewPublisher(producer, "attempts", faulttolerance.NewBreaker(faulttolerance.BreakerConfig{}, testLogger()), testLogger())
	p.Close()
	if !producer.closed {
		t.Error("Expected producer to be closed")
	}
}
