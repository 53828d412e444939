package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"triagegate/internal/cache"
)

func TestAdminStatsEndpoint(t *testing.T) {
	engine := cache.NewEngine(cache.Config{}, nil)
	h := NewAdminHandler(engine)

	ctx := context.Background()
	engine.Put(ctx, "text", nil, json.RawMessage(`{}`), time.Hour)
	engine.Get(ctx, "text", nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil)
	rr := httptest.NewRecorder()
	h.Stats(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var snap cache.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Requests != 1 || snap.Hits != 1 || snap.Writes != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestAdminClearEndpoint(t *testing.T) {
	engine := cache.NewEngine(cache.Config{}, nil)
	h := NewAdminHandler(engine)

	ctx := context.Background()
	engine.Put(ctx, "text", nil, json.RawMessage(`{}`), time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/admin/cache/clear", nil)
	rr := httptest.NewRecorder()
	h.Clear(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if _, _, ok := engine.Get(ctx, "text", nil); ok {
		t.Fatalf("expected miss after clear")
	}
}

func TestAdminCleanupEndpoint(t *testing.T) {
	engine := cache.NewEngine(cache.Config{}, nil)
	h := NewAdminHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/admin/cache/cleanup", nil)
	rr := httptest.NewRecorder()
	h.Cleanup(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["rows_removed"] != 0 {
		t.Fatalf("volatile-only engine should sweep nothing, got %d", resp["rows_removed"])
	}
}
