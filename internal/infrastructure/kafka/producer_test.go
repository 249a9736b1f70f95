package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"avaxdash/internal/streaming"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	if got := p.TopicFor(streaming.MessageTypeNetwork); got != "avaxdash-network" {
		t.Errorf("unexpected default topic %s", got)
	}
}

func TestPublishSnapshot(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, prefix: "dash"}
	fetched := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	err := p.PublishSnapshot(context.Background(), streaming.Message{
		Type:      streaming.MessageTypeThroughput,
		FetchedAt: fetched,
		Height:    101,
		Payload:   []byte(`[{"height":101,"transactionCount":23}]`),
	})
	if err != nil {
		t.Fatalf("PublishSnapshot: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if msg.Topic != "dash-throughput" || string(msg.Key) != "throughput" || !msg.Time.Equal(fetched) {
		t.Errorf("unexpected kafka message %+v", msg)
	}
	decoded, err := streaming.Decode(msg.Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Height != 101 || decoded.Type != streaming.MessageTypeThroughput {
		t.Errorf("unexpected payload %+v", decoded)
	}

	if err := p.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to be closed, err=%v", err)
	}
}

func TestPublishSnapshotErrors(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, prefix: "dash"}
	if err := p.PublishSnapshot(context.Background(), streaming.Message{Type: "blocks"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if len(writer.messages) != 0 {
		t.Fatal("expected nothing written")
	}

	writer.err = errors.New("broker down")
	if err := p.PublishSnapshot(context.Background(), streaming.Message{Type: streaming.MessageTypeNetwork}); err == nil {
		t.Fatal("expected writer error")
	}
}
