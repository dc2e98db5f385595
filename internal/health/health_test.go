package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	h := New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestReadyzReportsFailingProbe(t *testing.T) {
	t.Parallel()

	h := New(
		Probe{Name: "history", Run: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Probe{Name: "engine", Run: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want fail", body.Status)
	}
	if body.Probes["history"] != "fail: connection refused" {
		t.Errorf("history probe = %q", body.Probes["history"])
	}
	if body.Probes["engine"] != "ok" {
		t.Errorf("engine probe = %q, want ok", body.Probes["engine"])
	}
}

func TestReadyzEngineProbe(t *testing.T) {
	t.Parallel()

	running := false
	h := New(EngineRunning(func() bool { return running }))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stopped engine: status = %d, want 503", rec.Code)
	}

	running = true
	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("running engine: status = %d, want 200", rec.Code)
	}
}
