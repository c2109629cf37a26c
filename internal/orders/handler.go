package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/giftorder/internal/auth"
	"github.com/joao-fontenele/giftorder/internal/domain"
)

// Authenticator resolves the caller of a request from its Authorization header.
type Authenticator interface {
	Resolve(ctx context.Context, authorization string) auth.Principal
}

// OrderReader is the read side of the order store.
type OrderReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByMember(ctx context.Context, memberID int64) ([]domain.Order, error)
}

type Handler struct {
	service             *Service
	reader              OrderReader
	authenticator       Authenticator
	ruleViolationStatus int
	logger              *slog.Logger
}

// NewHandler wires the order endpoints. ruleViolationStatus is the status
// answered for insufficient stock or point.
func NewHandler(service *Service, reader OrderReader, authenticator Authenticator, ruleViolationStatus int, logger *slog.Logger) (*Handler, error) {
	if service == nil || reader == nil || authenticator == nil {
		return nil, errors.New("orders handler requires a service, a reader and an authenticator")
	}
	if ruleViolationStatus < 400 || ruleViolationStatus > 599 {
		return nil, fmt.Errorf("rule violation status must be 4xx or 5xx, got %d", ruleViolationStatus)
	}
	return &Handler{
		service:             service,
		reader:              reader,
		authenticator:       authenticator,
		ruleViolationStatus: ruleViolationStatus,
		logger:              logger,
	}, nil
}

type placeOrderRequest struct {
	OptionID *int64 `json:"optionId"`
	Quantity int    `json:"quantity"`
	Message  string `json:"message"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  FailureKind `json:"code,omitempty"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, fmt.Errorf("%w: malformed body", ErrInvalidRequest))
		return
	}

	cmd := PlaceOrderCommand{
		OptionID: req.OptionID,
		Quantity: req.Quantity,
		Message:  req.Message,
	}
	// The body is checked before the credential: a malformed request is a
	// 400 whatever token it carries.
	if err := cmd.Validate(); err != nil {
		h.writeFailure(w, err)
		return
	}

	principal := h.authenticator.Resolve(r.Context(), r.Header.Get("Authorization"))

	order, err := h.service.PlaceOrder(r.Context(), principal, cmd)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal := h.authenticator.Resolve(r.Context(), r.Header.Get("Authorization"))
	if !principal.IsAuthenticated() {
		h.writeFailure(w, ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid order id", KindInvalidRequest)
		return
	}

	order, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	// Another member's order is reported as absent.
	if order == nil || order.MemberID != principal.Member().ID {
		h.writeError(w, http.StatusNotFound, "order not found", "")
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal := h.authenticator.Resolve(r.Context(), r.Header.Get("Authorization"))
	if !principal.IsAuthenticated() {
		h.writeFailure(w, ErrUnauthorized)
		return
	}

	memberID := principal.Member().ID
	orders, err := h.reader.ListByMember(r.Context(), memberID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "member_id", memberID)
		h.writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	h.logger.Info("orders listed", "member_id", memberID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

// StatusFor maps a placement error to its HTTP status.
func (h *Handler) StatusFor(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindOptionNotFound:
		return http.StatusNotFound
	case KindInsufficientStock, KindInsufficientPoint:
		return h.ruleViolationStatus
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	kind, ok := KindOf(err)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	h.writeError(w, h.StatusFor(err), err.Error(), kind)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, code FailureKind) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: code})
}
