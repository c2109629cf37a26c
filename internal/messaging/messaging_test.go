package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves a fixed list of messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func testConsumer(reader *fakeReader, maxAttempts int) *Consumer {
	return &Consumer{
		reader:      reader,
		topic:       "order.placed",
		groupID:     "test",
		maxAttempts: maxAttempts,
		backoff:     time.Millisecond,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestProducer_Publish(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "order.placed", eventType: "order.placed"}

	if err := p.Publish(context.Background(), "42", map[string]int{"order_id": 42}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "42" {
		t.Errorf("expected key 42, got %s", msg.Key)
	}
	if got := Header(msg, EventTypeHeader); got != "order.placed" {
		t.Errorf("expected event type header, got %q", got)
	}
	var body map[string]int
	if err := json.Unmarshal(msg.Value, &body); err != nil || body["order_id"] != 42 {
		t.Errorf("unexpected payload %s (%v)", msg.Value, err)
	}
}

func TestProducer_PublishWrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{writer: &fakeWriter{err: boom}, topic: "t", eventType: "order.placed"}

	err := p.Publish(context.Background(), "1", struct{}{})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{}
	c := headerCarrier{msg: &msg}

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("baggage", "k=v")

	if got := c.Get("traceparent"); got != "b" {
		t.Errorf("expected overwritten value b, got %q", got)
	}
	if len(msg.Headers) != 2 {
		t.Errorf("expected 2 headers, got %d", len(msg.Headers))
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "traceparent" || keys[1] != "baggage" {
		t.Errorf("unexpected keys %v", keys)
	}
	if c.Get("missing") != "" {
		t.Error("expected empty value for missing header")
	}
}

func TestConsumer_Consume(t *testing.T) {
	tests := []struct {
		name          string
		handlerErrs   []error
		maxAttempts   int
		expectedCalls int
	}{
		{"success commits once", nil, 3, 1},
		{"transient failure is retried", []error{errors.New("email down")}, 3, 2},
		{"permanent failure is not retried", []error{fmt.Errorf("bad payload: %w", ErrPermanent)}, 3, 1},
		{"exhausted attempts still commit", []error{errors.New("x"), errors.New("x"), errors.New("x")}, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{pending: []kafka.Message{{Offset: 7, Key: []byte("1")}}}
			c := testConsumer(reader, tt.maxAttempts)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			calls := 0
			done := make(chan error, 1)
			go func() {
				done <- c.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
					calls++
					if calls <= len(tt.handlerErrs) {
						return tt.handlerErrs[calls-1]
					}
					return nil
				})
			}()

			deadline := time.After(2 * time.Second)
			for len(reader.commits()) == 0 {
				select {
				case <-deadline:
					t.Fatal("message was never committed")
				case <-time.After(time.Millisecond):
				}
			}
			cancel()

			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
			if calls != tt.expectedCalls {
				t.Errorf("expected %d handler calls, got %d", tt.expectedCalls, calls)
			}
			if commits := reader.commits(); len(commits) != 1 || commits[0] != 7 {
				t.Errorf("expected offset 7 committed once, got %v", commits)
			}
		})
	}
}
