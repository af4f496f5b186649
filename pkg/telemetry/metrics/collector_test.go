package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("failed to read metrics body: %v", err)
	}
	return string(body)
}

func TestCollectorRecordsEvaluations(t *testing.T) {
	c := NewCollector(Config{}, nil)

	c.RecordEvaluation(true, "database", 3*time.Millisecond)
	c.RecordEvaluation(true, "cache", time.Millisecond)
	c.RecordEvaluation(false, "kill_switch", time.Millisecond)

	body := scrape(t, c)
	for _, want := range []string{
		`lantern_evaluations_total{result="enabled",source="database"} 1`,
		`lantern_evaluations_total{result="enabled",source="cache"} 1`,
		`lantern_evaluations_total{result="disabled",source="kill_switch"} 1`,
		"lantern_evaluation_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollectorCacheMetrics(t *testing.T) {
	c := NewCollector(Config{}, nil)

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.SetCacheEntries(7)

	body := scrape(t, c)
	for _, want := range []string{
		"lantern_cache_hits_total 2",
		"lantern_cache_misses_total 1",
		"lantern_cache_entries 7",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollectorErrorAndControlMetrics(t *testing.T) {
	c := NewCollector(Config{}, nil)

	c.RecordStoreError("GetFlag", "unavailable")
	c.RecordKillSwitch("global")
	c.RecordKillSwitch("new-checkout")
	c.RecordRolloutRejection("percentage")

	body := scrape(t, c)
	for _, want := range []string{
		`lantern_store_errors_total{class="unavailable",operation="GetFlag"} 1`,
		`lantern_kill_switch_engaged_total{scope="global"} 1`,
		`lantern_kill_switch_engaged_total{scope="new-checkout"} 1`,
		`lantern_rollout_rejections_total{gate="percentage"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollectorCustomNamespace(t *testing.T) {
	c := NewCollector(Config{Namespace: "flagsvc"}, nil)
	c.RecordCacheHit()

	if body := scrape(t, c); !strings.Contains(body, "flagsvc_cache_hits_total 1") {
		t.Error("custom namespace not applied")
	}
}

func TestCollectorsUsePrivateRegistries(t *testing.T) {
	// Two collectors must not collide, which they would on the default
	// global registry.
	a := NewCollector(Config{}, nil)
	b := NewCollector(Config{}, nil)

	a.RecordCacheHit()

	if body := scrape(t, b); strings.Contains(body, "lantern_cache_hits_total 1") {
		t.Error("collectors share a registry")
	}
}
