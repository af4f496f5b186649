package rollout

import (
	"testing"
	"time"

	"lantern-hq/lantern/pkg/flags"
)

func TestBucketDeterministic(t *testing.T) {
	users := []string{"", "user-1", "user-2", "a-long-user-identifier"}
	keys := []string{"new-checkout", "dark-mode", "beta-search"}

	for _, u := range users {
		for _, k := range keys {
			first := Bucket(u, k)
			if first < 0 || first > 99 {
				t.Fatalf("Bucket(%q, %q) = %d, want 0-99", u, k, first)
			}
			for i := 0; i < 10; i++ {
				if got := Bucket(u, k); got != first {
					t.Fatalf("Bucket(%q, %q) unstable: %d then %d", u, k, first, got)
				}
			}
		}
	}
}

func TestBucketKnownValues(t *testing.T) {
	// Fixed vectors pin the hash contract: FNV-1a 32 over "userID-flagKey",
	// mod 100. Buckets assigned under one build must survive into the next,
	// so a change to the hash function, the separator, or the operand order
	// must fail here even though the runtime-computed tests still pass.
	tests := []struct {
		userID  string
		flagKey string
		want    int
	}{
		{"user-1", "promo_banner", 45},  // FNV1a32 = 1359232845
		{"", "promo_banner", 46},        // FNV1a32 = 3313310846
		{"user-7", "new-checkout", 16},  // FNV1a32 = 2707180516
		{"user-42", "dark-mode", 82},    // FNV1a32 = 2535548982
	}

	for _, tt := range tests {
		if got := Bucket(tt.userID, tt.flagKey); got != tt.want {
			t.Errorf("Bucket(%q, %q) = %d, want %d", tt.userID, tt.flagKey, got, tt.want)
		}
	}
}

func TestBucketVariesAcrossFlags(t *testing.T) {
	// The same user should not land in the same bucket for every flag.
	// With 40 flags a collision on all of them is impossible unless the
	// flag key is ignored.
	buckets := make(map[int]bool)
	for _, key := range []string{
		"flag-a", "flag-b", "flag-c", "flag-d", "flag-e",
		"flag-f", "flag-g", "flag-h", "flag-i", "flag-j",
		"flag-k", "flag-l", "flag-m", "flag-n", "flag-o",
		"flag-p", "flag-q", "flag-r", "flag-s", "flag-t",
		"flag-u", "flag-v", "flag-w", "flag-x", "flag-y",
		"flag-z", "flag-0", "flag-1", "flag-2", "flag-3",
		"flag-4", "flag-5", "flag-6", "flag-7", "flag-8",
		"flag-9", "flag-10", "flag-11", "flag-12", "flag-13",
	} {
		buckets[Bucket("user-42", key)] = true
	}
	if len(buckets) < 2 {
		t.Fatalf("expected user buckets to vary across flags, got %d distinct bucket(s)", len(buckets))
	}
}

func TestPercentageBoundaries(t *testing.T) {
	ec := flags.EvaluationContext{TenantID: "acme", UserID: "user-7"}

	// 0% admits nobody: every bucket is >= 0.
	ok, gate := Decide(ec, "new-checkout", flags.RolloutConfig{Percentage: 0})
	if ok || gate != GatePercentage {
		t.Errorf("0%% rollout: got (%v, %q), want (false, percentage)", ok, gate)
	}

	// 100% admits everybody: every bucket is < 100.
	ok, gate = Decide(ec, "new-checkout", flags.RolloutConfig{Percentage: 100})
	if !ok || gate != GateNone {
		t.Errorf("100%% rollout: got (%v, %q), want (true, none)", ok, gate)
	}
}

func TestPercentageThreshold(t *testing.T) {
	// A user in bucket b is rejected at percentage b and admitted at b+1.
	bucket := Bucket("user-7", "new-checkout")
	ec := flags.EvaluationContext{TenantID: "acme", UserID: "user-7"}

	if ok, _ := Decide(ec, "new-checkout", flags.RolloutConfig{Percentage: bucket}); ok {
		t.Errorf("bucket %d admitted at percentage %d", bucket, bucket)
	}
	if ok, _ := Decide(ec, "new-checkout", flags.RolloutConfig{Percentage: bucket + 1}); !ok {
		t.Errorf("bucket %d rejected at percentage %d", bucket, bucket+1)
	}
}

func TestTimeWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	cfg := flags.RolloutConfig{
		Percentage: 100,
		StartDate:  &start,
		EndDate:    &end,
	}

	tests := []struct {
		name     string
		ts       time.Time
		want     bool
		wantGate Gate
	}{
		{"before window", start.Add(-time.Hour), false, GateTimeWindow},
		{"at start", start, true, GateNone},
		{"inside window", start.AddDate(0, 0, 10), true, GateNone},
		{"after window", end.Add(time.Hour), false, GateTimeWindow},
		{"no timestamp passes", time.Time{}, true, GateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := flags.EvaluationContext{TenantID: "acme", UserID: "user-7", Timestamp: tt.ts}
			got, gate := Decide(ec, "new-checkout", cfg)
			if got != tt.want || gate != tt.wantGate {
				t.Errorf("got (%v, %q), want (%v, %q)", got, gate, tt.want, tt.wantGate)
			}
		})
	}
}

func TestBusinessHours(t *testing.T) {
	cfg := flags.RolloutConfig{Percentage: 100, BusinessHoursOnly: true}

	tests := []struct {
		name     string
		ts       time.Time
		want     bool
		wantGate Gate
	}{
		{"weekday morning", time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC), true, GateNone},
		{"weekday at open", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), true, GateNone},
		{"weekday last minute", time.Date(2026, 3, 4, 17, 59, 0, 0, time.UTC), true, GateNone},
		{"weekday at close", time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC), false, GateBusinessHours},
		{"weekday too early", time.Date(2026, 3, 4, 8, 59, 0, 0, time.UTC), false, GateBusinessHours},
		{"saturday", time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC), false, GateBusinessHours},
		{"sunday", time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC), false, GateBusinessHours},
		{"no timestamp passes", time.Time{}, true, GateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := flags.EvaluationContext{TenantID: "acme", UserID: "user-7", Timestamp: tt.ts}
			got, gate := Decide(ec, "new-checkout", cfg)
			if got != tt.want || gate != tt.wantGate {
				t.Errorf("got (%v, %q), want (%v, %q)", got, gate, tt.want, tt.wantGate)
			}
		})
	}
}

func TestRegionTargeting(t *testing.T) {
	cfg := flags.RolloutConfig{
		Percentage:    100,
		TargetRegions: []string{"us-east-1", "eu-west-1"},
	}

	tests := []struct {
		name     string
		region   string
		want     bool
		wantGate Gate
	}{
		{"targeted region", "us-east-1", true, GateNone},
		{"other targeted region", "eu-west-1", true, GateNone},
		{"untargeted region", "ap-south-1", false, GateRegion},
		{"missing region passes", "", true, GateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := flags.EvaluationContext{TenantID: "acme", UserID: "user-7", Region: tt.region}
			got, gate := Decide(ec, "new-checkout", cfg)
			if got != tt.want || gate != tt.wantGate {
				t.Errorf("got (%v, %q), want (%v, %q)", got, gate, tt.want, tt.wantGate)
			}
		})
	}
}

func TestCohortTargeting(t *testing.T) {
	cfg := flags.RolloutConfig{
		Percentage:  100,
		UserCohorts: []string{"beta", "internal"},
	}

	tests := []struct {
		name     string
		cohort   string
		want     bool
		wantGate Gate
	}{
		{"targeted cohort", "beta", true, GateNone},
		{"untargeted cohort", "general", false, GateCohort},
		{"missing cohort passes", "", true, GateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := flags.EvaluationContext{TenantID: "acme", UserID: "user-7", UserCohort: tt.cohort}
			got, gate := Decide(ec, "new-checkout", cfg)
			if got != tt.want || gate != tt.wantGate {
				t.Errorf("got (%v, %q), want (%v, %q)", got, gate, tt.want, tt.wantGate)
			}
		})
	}
}

func TestGateOrdering(t *testing.T) {
	// When several gates would reject, the earliest one is reported.
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := flags.RolloutConfig{
		Percentage:    0,
		StartDate:     &start,
		TargetRegions: []string{"us-east-1"},
	}
	ec := flags.EvaluationContext{
		TenantID:  "acme",
		UserID:    "user-7",
		Region:    "ap-south-1",
		Timestamp: start.Add(-time.Hour),
	}

	_, gate := Decide(ec, "new-checkout", cfg)
	if gate != GateTimeWindow {
		t.Errorf("gate = %q, want %q", gate, GateTimeWindow)
	}
}

func TestEvaluateMatchesDecide(t *testing.T) {
	ec := flags.EvaluationContext{TenantID: "acme", UserID: "user-7"}
	cfg := flags.RolloutConfig{Percentage: 100}

	if !Evaluate(ec, "new-checkout", cfg) {
		t.Error("Evaluate returned false for an eligible context")
	}
	if Evaluate(ec, "new-checkout", flags.RolloutConfig{Percentage: 0}) {
		t.Error("Evaluate returned true for a 0% rollout")
	}
}
