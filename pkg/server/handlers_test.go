package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lantern-hq/lantern/pkg/config"
	"lantern-hq/lantern/pkg/flags"
	"lantern-hq/lantern/pkg/flags/cache"
	"lantern-hq/lantern/pkg/flags/evaluator"
	"lantern-hq/lantern/pkg/flags/management"
	"lantern-hq/lantern/pkg/flags/store"
	"lantern-hq/lantern/pkg/telemetry/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serverFixture struct {
	store   *store.MemoryStore
	handler http.Handler
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	st := store.NewMemoryStore("production")
	c := cache.New(30 * time.Second)
	t.Cleanup(c.Close)

	collector := metrics.NewCollector(metrics.Config{}, nil)

	eval, err := evaluator.New(evaluator.Config{Environment: "production"}, st, c, testLogger(), collector)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}

	mgmt, err := management.NewService(st, "production", nil, eval, testLogger())
	if err != nil {
		t.Fatalf("failed to create management service: %v", err)
	}

	srv := NewServer(&config.ServerConfig{ListenAddress: "127.0.0.1:0"}, eval, mgmt, collector, testLogger())
	return &serverFixture{store: st, handler: srv.routes()}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) mustCreateFlag(t *testing.T, key string, enabled bool) {
	t.Helper()
	if err := f.store.CreateFlag(context.Background(), &flags.Flag{
		Key: key, Description: "test flag", Owner: "platform", DefaultEnabled: enabled,
	}); err != nil {
		t.Fatalf("CreateFlag(%q) failed: %v", key, err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestEvaluateEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", true)

	rec := f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	result := decode[flags.Evaluation](t, rec)
	if !result.Enabled || result.FlagKey != "new-checkout" || result.TenantID != "acme" {
		t.Errorf("unexpected evaluation: %+v", result)
	}
	if result.Source != flags.SourceDatabase {
		t.Errorf("source = %q, want database", result.Source)
	}
	if result.TTL != 30 {
		t.Errorf("ttl = %d, want 30", result.TTL)
	}

	// Second call comes from the cache.
	rec = f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	if result := decode[flags.Evaluation](t, rec); result.Source != flags.SourceCache {
		t.Errorf("second source = %q, want cache", result.Source)
	}
}

func TestEvaluateWithRollout(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", true)

	rec := f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme", UserID: "u1"},
		Rollout: &flags.RolloutConfig{Percentage: 100},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if result := decode[flags.Evaluation](t, rec); !result.Enabled {
		t.Error("100% rollout evaluated to disabled")
	}
}

func TestEvaluateBadRequests(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", true)

	tests := []struct {
		name string
		body any
	}{
		{"invalid rollout percentage", evaluateRequest{
			FlagKey: "new-checkout",
			Context: flags.EvaluationContext{TenantID: "acme"},
			Rollout: &flags.RolloutConfig{Percentage: 150},
		}},
		{"missing tenant", evaluateRequest{FlagKey: "new-checkout"}},
		{"environment mismatch", evaluateRequest{
			FlagKey: "new-checkout",
			Context: flags.EvaluationContext{TenantID: "acme", Environment: "staging"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(t, "POST", "/v1/evaluate", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
		})
	}

	// Malformed JSON is also a 400.
	req := httptest.NewRequest("POST", "/v1/evaluate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestCreateFlagEndpoint(t *testing.T) {
	f := newServerFixture(t)

	body := createFlagRequest{
		FlagKey:        "dark-mode",
		Description:    "dark mode toggle",
		DefaultEnabled: true,
		Owner:          "frontend",
	}
	rec := f.do(t, "POST", "/v1/flags", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	created := decode[flags.Flag](t, rec)
	if created.Key != "dark-mode" || !created.DefaultEnabled {
		t.Errorf("unexpected created flag: %+v", created)
	}

	// Duplicate creation conflicts.
	if rec := f.do(t, "POST", "/v1/flags", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	// Missing required fields are a validation failure.
	rec = f.do(t, "POST", "/v1/flags", createFlagRequest{FlagKey: "incomplete"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("incomplete status = %d, want 400", rec.Code)
	}
}

func TestGetAndListFlags(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "flag-a", true)
	f.mustCreateFlag(t, "flag-b", false)

	rec := f.do(t, "GET", "/v1/flags/flag-a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[flags.Flag](t, rec); got.Key != "flag-a" {
		t.Errorf("unexpected flag: %+v", got)
	}

	if rec := f.do(t, "GET", "/v1/flags/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing flag status = %d, want 404", rec.Code)
	}

	rec = f.do(t, "GET", "/v1/flags", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	listed := decode[map[string][]flags.Flag](t, rec)
	if len(listed["flags"]) != 2 {
		t.Errorf("listed %d flags, want 2", len(listed["flags"]))
	}
}

func TestUpdateFlagEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "dark-mode", true)

	disabled := false
	rec := f.do(t, "PATCH", "/v1/flags/dark-mode", updateFlagRequest{
		FlagUpdate: flags.FlagUpdate{DefaultEnabled: &disabled},
		Actor:      "oncall",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}

	got, err := f.store.GetFlag(context.Background(), "dark-mode")
	if err != nil {
		t.Fatalf("GetFlag failed: %v", err)
	}
	if got.DefaultEnabled {
		t.Error("update not applied")
	}

	// Empty updates and missing flags map to their error classes.
	rec = f.do(t, "PATCH", "/v1/flags/dark-mode", updateFlagRequest{Actor: "oncall"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty update status = %d, want 400", rec.Code)
	}
	rec = f.do(t, "PATCH", "/v1/flags/missing", updateFlagRequest{
		FlagUpdate: flags.FlagUpdate{DefaultEnabled: &disabled},
		Actor:      "oncall",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing flag status = %d, want 404", rec.Code)
	}
}

func TestDeleteFlagRefused(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "dark-mode", true)

	rec := f.do(t, "DELETE", "/v1/flags/dark-mode", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}

	// The flag survives the attempt.
	if _, err := f.store.GetFlag(context.Background(), "dark-mode"); err != nil {
		t.Errorf("flag disappeared: %v", err)
	}
}

func TestOverrideEndpoints(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", false)

	rec := f.do(t, "PUT", "/v1/tenants/acme/overrides/new-checkout", overrideRequest{
		Enabled: true, Actor: "ops@acme",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}

	// The override changes evaluation for that tenant.
	evalRec := f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	if result := decode[flags.Evaluation](t, evalRec); !result.Enabled {
		t.Error("override did not take effect")
	}

	// Actor is mandatory.
	rec = f.do(t, "PUT", "/v1/tenants/acme/overrides/new-checkout", overrideRequest{Enabled: true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing actor status = %d, want 400", rec.Code)
	}

	rec = f.do(t, "DELETE", "/v1/tenants/acme/overrides/new-checkout", removeOverrideRequest{Actor: "ops@acme"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}
	rec = f.do(t, "DELETE", "/v1/tenants/acme/overrides/new-checkout", removeOverrideRequest{Actor: "ops@acme"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", rec.Code)
	}
}

func TestKillSwitchEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", true)

	rec := f.do(t, "PUT", "/v1/kill-switch", killSwitchRequest{
		Enabled: true, Reason: "incident-421", Actor: "oncall",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}

	// The switch forces every evaluation in the environment to disabled.
	evalRec := f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	if result := decode[flags.Evaluation](t, evalRec); result.Enabled {
		t.Error("kill-switch did not take effect")
	}

	// Reason and actor are both mandatory.
	rec = f.do(t, "PUT", "/v1/kill-switch", killSwitchRequest{Enabled: false, Actor: "oncall"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing reason status = %d, want 400", rec.Code)
	}
}

func TestFlagScopedKillSwitchEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", true)
	f.mustCreateFlag(t, "dark-mode", true)

	rec := f.do(t, "PUT", "/v1/kill-switch/new-checkout", killSwitchRequest{
		Enabled: true, Reason: "incident-422", Actor: "oncall",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}

	evalRec := f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	if result := decode[flags.Evaluation](t, evalRec); result.Enabled {
		t.Error("flag-scoped kill-switch did not take effect")
	}

	// Other flags in the environment are untouched.
	evalRec = f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "dark-mode",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	if result := decode[flags.Evaluation](t, evalRec); !result.Enabled {
		t.Error("unrelated flag was disabled")
	}
}

func TestCacheInvalidateEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", true)

	// Warm the cache, flip the default behind it, then invalidate.
	f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	disabled := false
	if err := f.store.UpdateFlag(context.Background(), "new-checkout", flags.FlagUpdate{DefaultEnabled: &disabled}); err != nil {
		t.Fatalf("UpdateFlag failed: %v", err)
	}

	rec := f.do(t, "POST", "/v1/cache/invalidate", invalidateCacheRequest{
		TenantID: "acme", FlagKey: "new-checkout",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	evalRec := f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})
	if result := decode[flags.Evaluation](t, evalRec); result.Enabled {
		t.Error("stale decision survived invalidation")
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	health := decode[map[string]string](t, rec)
	if health["status"] != "ok" || health["environment"] != "production" {
		t.Errorf("unexpected health response: %v", health)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.mustCreateFlag(t, "new-checkout", true)

	f.do(t, "POST", "/v1/evaluate", evaluateRequest{
		FlagKey: "new-checkout",
		Context: flags.EvaluationContext{TenantID: "acme"},
	})

	rec := f.do(t, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lantern_evaluations_total") {
		t.Error("metrics output missing evaluation counter")
	}
}

func TestWriteStoreErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", store.ErrValidation, http.StatusBadRequest},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"conflict", store.ErrConditionalCheckFailed, http.StatusConflict},
		{"access denied", store.ErrAccessDenied, http.StatusForbidden},
		{"throttled", store.ErrThrottled, http.StatusTooManyRequests},
		{"unavailable", store.ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeStoreError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
