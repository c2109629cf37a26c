package option

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/giftorder/internal/domain"
)

// Reader is the read side of the option store used by the catalog endpoints.
type Reader interface {
	FindByID(ctx context.Context, id int64) (*domain.Option, error)
	ListByProduct(ctx context.Context, productID int64) ([]domain.Option, error)
}

type Handler struct {
	repo   Reader
	logger *slog.Logger
}

func NewHandler(repo Reader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid option id")
		return
	}

	opt, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get option", "error", err, "option_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if opt == nil {
		h.writeError(w, http.StatusNotFound, "option not found")
		return
	}

	h.logger.Info("option retrieved", "option_id", id)
	h.writeJSON(w, http.StatusOK, opt)
}

func (h *Handler) HandleListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productId"), 10, 64)
	if err != nil || productID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	options, err := h.repo.ListByProduct(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to list options", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("options listed", "product_id", productID, "count", len(options))
	h.writeJSON(w, http.StatusOK, options)
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
