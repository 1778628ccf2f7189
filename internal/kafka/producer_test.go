package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/psds-microservice/support-service/internal/notify"
	"github.com/segmentio/kafka-go"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestProducer_SendKeysByRecipient(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "support.notifications")
	n := notify.Notice{ID: "n1", Kind: notify.KindStatusChanged, RecipientID: "42", TicketID: 7}
	if err := p.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "42" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}
	var got notify.Notice
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.TicketID != 7 || got.Kind != notify.KindStatusChanged {
		t.Fatalf("payload = %+v", got)
	}
}

func TestProducer_Errors(t *testing.T) {
	if err := NewProducer(nil, "t").Send(context.Background(), notify.Notice{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	boom := errors.New("leader not available")
	p := NewProducerWithWriter(&memWriter{err: boom}, "t")
	if err := p.Send(context.Background(), notify.Notice{RecipientID: "1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}
