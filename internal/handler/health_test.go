package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type stubChecker struct {
	err error
}

func (s stubChecker) Ping(context.Context) error {
	return s.err
}

func TestHealthHandler_Healthz(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(stubChecker{err: errors.New("down")}, nil, nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Checks != nil {
		t.Errorf("liveness must not check dependencies, got %+v", resp)
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")

	tests := []struct {
		name       string
		db, cache  HealthChecker
		search     HealthChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			db:         stubChecker{},
			cache:      stubChecker{},
			search:     stubChecker{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "cache": "ok", "search": "ok"},
		},
		{
			name:       "nothing configured",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "not configured", "cache": "not configured", "search": "not configured"},
		},
		{
			name:       "database down",
			db:         stubChecker{err: refused},
			cache:      stubChecker{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "error: connection refused", "cache": "ok", "search": "not configured"},
		},
		{
			name:       "cache down",
			db:         stubChecker{},
			cache:      stubChecker{err: refused},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "ok", "cache": "error: connection refused", "search": "not configured"},
		},
		{
			name:       "search down stays ready",
			db:         stubChecker{},
			cache:      stubChecker{},
			search:     stubChecker{err: refused},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "cache": "ok", "search": "error: connection refused"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(tt.db, tt.cache, tt.search)
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.wantChecks, resp.Checks); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
