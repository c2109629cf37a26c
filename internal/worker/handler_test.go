package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/giftorder/internal/domain"
	"github.com/joao-fontenele/giftorder/internal/messaging"
)

type memDeduper struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func (d *memDeduper) Claim(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.claimed[eventID] {
		return false, nil
	}
	d.claimed[eventID] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, eventID)
	return nil
}

type emailServer struct {
	*httptest.Server
	mu       sync.Mutex
	received []map[string]string
	status   int
}

func newEmailServer(t *testing.T, status int) *emailServer {
	t.Helper()
	s := &emailServer{status: status}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.received = append(s.received, body)
		s.mu.Unlock()
		w.WriteHeader(s.status)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *emailServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func placedMessage(t *testing.T, event domain.OrderPlacedEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return kafka.Message{Key: []byte("1"), Value: data}
}

var sampleEvent = domain.OrderPlacedEvent{
	EventID:       "evt-1",
	OrderID:       1,
	MemberEmail:   "test@example.com",
	OptionID:      3,
	Quantity:      2,
	TotalPrice:    200,
	Message:       "happy birthday",
	OrderDateTime: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
}

func TestGiftMessageHandler_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("sends the gift message to the member", func(t *testing.T) {
		srv := newEmailServer(t, http.StatusOK)
		h := NewGiftMessageHandler(srv.URL, srv.Client(), nil, logger)

		if err := h.Handle(context.Background(), placedMessage(t, sampleEvent)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if srv.count() != 1 {
			t.Fatalf("expected 1 email, got %d", srv.count())
		}
		got := srv.received[0]
		if got["to"] != "test@example.com" {
			t.Errorf("expected recipient test@example.com, got %s", got["to"])
		}
		if !strings.Contains(got["body"], "happy birthday") || !strings.Contains(got["body"], "200 points") {
			t.Errorf("unexpected body %q", got["body"])
		}
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		srv := newEmailServer(t, http.StatusOK)
		h := NewGiftMessageHandler(srv.URL, srv.Client(), nil, logger)

		err := h.Handle(context.Background(), kafka.Message{Value: []byte("{not json")})
		if !errors.Is(err, messaging.ErrPermanent) {
			t.Errorf("expected permanent error, got %v", err)
		}
		if srv.count() != 0 {
			t.Errorf("expected no email, got %d", srv.count())
		}
	})

	t.Run("client error from email service is permanent", func(t *testing.T) {
		srv := newEmailServer(t, http.StatusBadRequest)
		h := NewGiftMessageHandler(srv.URL, srv.Client(), nil, logger)

		err := h.Handle(context.Background(), placedMessage(t, sampleEvent))
		if !errors.Is(err, messaging.ErrPermanent) {
			t.Errorf("expected permanent error, got %v", err)
		}
	})

	t.Run("server error is retryable and releases the claim", func(t *testing.T) {
		srv := newEmailServer(t, http.StatusServiceUnavailable)
		dedup := &memDeduper{claimed: map[string]bool{}}
		h := NewGiftMessageHandler(srv.URL, srv.Client(), dedup, logger)

		err := h.Handle(context.Background(), placedMessage(t, sampleEvent))
		if err == nil || errors.Is(err, messaging.ErrPermanent) {
			t.Errorf("expected retryable error, got %v", err)
		}
		if dedup.claimed[sampleEvent.EventID] {
			t.Error("expected claim to be released")
		}
	})

	t.Run("redelivered event is sent once", func(t *testing.T) {
		srv := newEmailServer(t, http.StatusOK)
		dedup := &memDeduper{claimed: map[string]bool{}}
		h := NewGiftMessageHandler(srv.URL, srv.Client(), dedup, logger)

		for i := 0; i < 3; i++ {
			if err := h.Handle(context.Background(), placedMessage(t, sampleEvent)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if srv.count() != 1 {
			t.Errorf("expected 1 email, got %d", srv.count())
		}
	})

	t.Run("dedup outage still delivers", func(t *testing.T) {
		srv := newEmailServer(t, http.StatusOK)
		dedup := &memDeduper{claimed: map[string]bool{}, err: errors.New("redis down")}
		h := NewGiftMessageHandler(srv.URL, srv.Client(), dedup, logger)

		if err := h.Handle(context.Background(), placedMessage(t, sampleEvent)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if srv.count() != 1 {
			t.Errorf("expected 1 email, got %d", srv.count())
		}
	})
}
