package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler(ordersURL, catalogURL string) *Handler {
	return NewHandler(
		NewServiceProxy(ordersURL, http.DefaultClient),
		NewServiceProxy(catalogURL, http.DefaultClient),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestHandler_HandleOrders(t *testing.T) {
	t.Run("proxies POST /api/orders with body and credentials", func(t *testing.T) {
		ordersServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/orders" {
				t.Errorf("expected /api/orders, got %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer abc" {
				t.Errorf("expected forwarded Authorization, got %q", got)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"optionId":1,"quantity":2}` {
				t.Errorf("unexpected body: %s", body)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
		}))
		defer ordersServer.Close()

		handler := newTestHandler(ordersServer.URL, "http://unused")

		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"optionId":1,"quantity":2}`))
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()

		handler.HandleOrders(rec, req)

		if rec.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
		if rec.Body.String() != `{"id":1}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("passes rate limit responses through", func(t *testing.T) {
		ordersServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ordersServer.Close()

		handler := newTestHandler(ordersServer.URL, "http://unused")

		rec := httptest.NewRecorder()
		handler.HandleOrders(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected status 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "1" {
			t.Errorf("expected Retry-After to be returned, got %q", rec.Header().Get("Retry-After"))
		}
	})

	t.Run("returns 502 when orders service unavailable", func(t *testing.T) {
		handler := NewHandler(
			NewServiceProxy("http://localhost:99999", &http.Client{}),
			NewServiceProxy("http://unused", http.DefaultClient),
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		)

		rec := httptest.NewRecorder()
		handler.HandleOrders(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}

func TestHandler_HandleCatalog(t *testing.T) {
	t.Run("forwards option reads unchanged", func(t *testing.T) {
		catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/options/7" {
				t.Errorf("expected /api/options/7, got %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":7,"quantity":10}`))
		}))
		defer catalogServer.Close()

		handler := newTestHandler("http://unused", catalogServer.URL)

		rec := httptest.NewRecorder()
		handler.HandleCatalog(rec, httptest.NewRequest(http.MethodGet, "/api/options/7", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("preserves downstream error status", func(t *testing.T) {
		catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"option not found"}`))
		}))
		defer catalogServer.Close()

		handler := newTestHandler("http://unused", catalogServer.URL)

		rec := httptest.NewRecorder()
		handler.HandleCatalog(rec, httptest.NewRequest(http.MethodGet, "/api/options/999", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}
