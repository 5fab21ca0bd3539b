package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, h *Handler, path string) (*http.Response, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	res := rec.Result()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	res.Body.Close()
	return res, body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := NewHandler()
	h.Add("broken", func(context.Context) error { return errors.New("down") })

	res, body := serve(t, h, "/healthz")
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body status = %v", body["status"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("liveness body missing uptime")
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyz_NoChecks(t *testing.T) {
	t.Parallel()
	res, body := serve(t, NewHandler(), "/readyz")
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body status = %v", body["status"])
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	t.Parallel()
	h := NewHandler()
	h.Add("discord", func(context.Context) error { return nil })
	h.Add("history", func(context.Context) error { return nil })

	res, body := serve(t, h, "/readyz")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	checks := body["checks"].(map[string]any)
	if checks["discord"] != "ok" || checks["history"] != "ok" {
		t.Errorf("checks = %v", checks)
	}
}

func TestReadyz_FailingCheckReturns503(t *testing.T) {
	t.Parallel()
	h := NewHandler()
	h.Add("discord", func(context.Context) error { return nil })
	h.Add("history", func(context.Context) error { return errors.New("connection refused") })

	res, body := serve(t, h, "/readyz")
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.StatusCode)
	}
	if body["status"] != "fail" {
		t.Errorf("body status = %v", body["status"])
	}
	checks := body["checks"].(map[string]any)
	if checks["history"] != "fail: connection refused" {
		t.Errorf("history check = %v", checks["history"])
	}
	if checks["discord"] != "ok" {
		t.Errorf("discord check = %v", checks["discord"])
	}
}

func TestReadyz_CheckReceivesDeadline(t *testing.T) {
	t.Parallel()
	h := NewHandler()
	h.Add("deadline", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline set")
		}
		return nil
	})

	res, _ := serve(t, h, "/readyz")
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
}
