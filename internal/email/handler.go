// Package email is a stand-in mail relay. It validates and logs messages
// instead of delivering them.
package email

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Message is the payload accepted by POST /send.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers a validated message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes each message to the log and keeps the most recent ones
// for inspection.
type LogSender struct {
	logger *slog.Logger
	keep   int

	mu     sync.Mutex
	recent []Message
}

func NewLogSender(logger *slog.Logger, keep int) *LogSender {
	return &LogSender{logger: logger, keep: keep}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email sent", "to", msg.To, "subject", msg.Subject, "body_length", len(msg.Body))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, msg)
	if over := len(s.recent) - s.keep; over > 0 {
		s.recent = s.recent[over:]
	}
	return nil
}

// Recent returns the retained messages, oldest first.
func (s *LogSender) Recent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.recent...)
}

type Handler struct {
	sender Sender
	logger *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.Contains(msg.To, "@") {
		h.writeError(w, http.StatusBadRequest, "recipient must be an email address")
		return
	}
	if strings.TrimSpace(msg.Subject) == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	if err := h.sender.Send(r.Context(), msg); err != nil {
		h.logger.Error("failed to send email", "error", err, "to", msg.To)
		h.writeError(w, http.StatusBadGateway, "delivery failed")
		return
	}

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
