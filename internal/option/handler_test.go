package option

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joao-fontenele/giftorder/internal/domain"
)

type stubReader struct {
	options map[int64]domain.Option
	err     error
}

func (s *stubReader) FindByID(_ context.Context, id int64) (*domain.Option, error) {
	if s.err != nil {
		return nil, s.err
	}
	opt, ok := s.options[id]
	if !ok {
		return nil, nil
	}
	return &opt, nil
}

func (s *stubReader) ListByProduct(_ context.Context, productID int64) ([]domain.Option, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.Option{}
	for _, opt := range s.options {
		if opt.ProductID == productID {
			out = append(out, opt)
		}
	}
	return out, nil
}

func newTestMux(reader Reader) *http.ServeMux {
	handler := NewHandler(reader, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/options/{id}", handler.HandleGet)
	mux.HandleFunc("GET /api/products/{productId}/options", handler.HandleListByProduct)
	return mux
}

func TestHandler_HandleGet(t *testing.T) {
	reader := &stubReader{options: map[int64]domain.Option{
		1: {ID: 1, ProductID: 10, Name: "red", Quantity: 3, Price: 100},
	}}

	t.Run("returns option", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(reader).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options/1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var opt domain.Option
		if err := json.Unmarshal(rec.Body.Bytes(), &opt); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if opt.Quantity != 3 || opt.Price != 100 {
			t.Errorf("unexpected option: %+v", opt)
		}
	})

	t.Run("returns 404 for unknown option", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(reader).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options/999", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("returns 400 for malformed id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(reader).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options/abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("returns 500 when store fails", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(&stubReader{err: errors.New("db down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options/1", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleListByProduct(t *testing.T) {
	reader := &stubReader{options: map[int64]domain.Option{
		1: {ID: 1, ProductID: 10, Name: "red", Quantity: 3, Price: 100},
		2: {ID: 2, ProductID: 11, Name: "blue", Quantity: 1, Price: 200},
	}}

	rec := httptest.NewRecorder()
	newTestMux(reader).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/10/options", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var options []domain.Option
	if err := json.Unmarshal(rec.Body.Bytes(), &options); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(options) != 1 || options[0].ID != 1 {
		t.Errorf("unexpected options: %+v", options)
	}
}
