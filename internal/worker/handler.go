package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/giftorder/internal/domain"
	"github.com/joao-fontenele/giftorder/internal/messaging"
)

// Deduper remembers which events were already delivered. Claim reports false
// when the event was claimed before.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// GiftMessageHandler delivers the gift message of every placed order to the
// ordering member through the email service.
type GiftMessageHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	deduper         Deduper
	logger          *slog.Logger
}

// NewGiftMessageHandler builds the handler. deduper may be nil, in which case
// redelivered events are sent again.
func NewGiftMessageHandler(emailServiceURL string, client *http.Client, deduper Deduper, logger *slog.Logger) *GiftMessageHandler {
	return &GiftMessageHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		deduper:         deduper,
		logger:          logger,
	}
}

func (h *GiftMessageHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %v: %w", err, messaging.ErrPermanent)
	}
	if event.EventID == "" || event.MemberEmail == "" {
		return fmt.Errorf("order placed event %d is incomplete: %w", event.OrderID, messaging.ErrPermanent)
	}

	h.logger.InfoContext(ctx, "processing order placed event", "order_id", event.OrderID, "event_id", event.EventID)

	if h.deduper != nil {
		claimed, err := h.deduper.Claim(ctx, event.EventID)
		if err != nil {
			h.logger.WarnContext(ctx, "dedup unavailable, delivering anyway", "error", err, "event_id", event.EventID)
		} else if !claimed {
			h.logger.InfoContext(ctx, "gift message already delivered", "order_id", event.OrderID, "event_id", event.EventID)
			return nil
		}
	}

	if err := h.sendGiftMessage(ctx, event); err != nil {
		if h.deduper != nil {
			if rerr := h.deduper.Release(ctx, event.EventID); rerr != nil {
				h.logger.WarnContext(ctx, "failed to release dedup claim", "error", rerr, "event_id", event.EventID)
			}
		}
		h.logger.ErrorContext(ctx, "failed to send gift message", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send gift message for order %d: %w", event.OrderID, err)
	}

	h.logger.InfoContext(ctx, "gift message delivered", "order_id", event.OrderID)
	return nil
}

func (h *GiftMessageHandler) sendGiftMessage(ctx context.Context, event domain.OrderPlacedEvent) error {
	body := map[string]string{
		"to":      event.MemberEmail,
		"subject": fmt.Sprintf("Your gift order #%d", event.OrderID),
		"body": fmt.Sprintf("%d item(s) of option %d were ordered for %d points on %s.\n\n%s",
			event.Quantity, event.OptionID, event.TotalPrice,
			event.OrderDateTime.Format("2006-01-02 15:04 MST"), event.Message),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("email service rejected message with status %d: %w", resp.StatusCode, messaging.ErrPermanent)
	default:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
}
