package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/taskgroups/internal/app/features/health"
	"github.com/dalemusser/taskgroups/internal/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Message  string `json:"message"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, body
}

func TestServe_MemoryBackend(t *testing.T) {
	rec, body := serve(t, health.NewHandler(nil, nil, zap.NewNop()))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Status != "ok" || body.Database != "memory" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Redis != "" {
		t.Errorf("redis should be omitted without a client, got %q", body.Redis)
	}
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rec, body := serve(t, health.NewHandler(db.Client(), nil, zap.NewNop()))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Status != "ok" || body.Database != "connected" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestServe_RedisUnavailable(t *testing.T) {
	// Nothing listens on port 1.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	rec, body := serve(t, health.NewHandler(nil, rdb, zap.NewNop()))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if body.Status != "error" || body.Redis != "disconnected" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Message != "Redis unavailable" {
		t.Errorf("message = %q", body.Message)
	}
}
