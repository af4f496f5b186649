package rollout

import (
	"hash/fnv"
	"slices"
	"time"

	"lantern-hq/lantern/pkg/flags"
)

// Gate names the rollout gate that rejected an evaluation. Used for
// metrics labels and debug logging.
type Gate string

const (
	// GateNone means no gate rejected; the context is eligible.
	GateNone Gate = ""

	// GateTimeWindow rejects timestamps outside [StartDate, EndDate].
	GateTimeWindow Gate = "time_window"

	// GateBusinessHours rejects timestamps outside weekday 09:00-18:00.
	GateBusinessHours Gate = "business_hours"

	// GateRegion rejects contexts whose region is not targeted.
	GateRegion Gate = "region"

	// GateCohort rejects contexts whose cohort is not targeted.
	GateCohort Gate = "cohort"

	// GatePercentage rejects contexts bucketed above the percentage.
	GatePercentage Gate = "percentage"
)

// Business-hours bounds, in the local time of the evaluation timestamp.
const (
	businessHoursStart = 9
	businessHoursEnd   = 18
)

// Evaluate reports whether the context qualifies for the staged rollout of
// flagKey under cfg. It is deterministic: identical inputs always produce
// the same answer.
func Evaluate(ec flags.EvaluationContext, flagKey string, cfg flags.RolloutConfig) bool {
	_, gate := Decide(ec, flagKey, cfg)
	return gate == GateNone
}

// Decide evaluates the five gates in order and returns the eligibility
// together with the first gate that rejected, or GateNone when eligible.
//
// Missing context fields are treated as "not applicable": a context without
// a timestamp passes the time gates, one without a region passes region
// targeting, and so on. The one exception is percentage bucketing, which
// buckets the empty-string user ID when no user is present.
func Decide(ec flags.EvaluationContext, flagKey string, cfg flags.RolloutConfig) (bool, Gate) {
	// 1. Time window
	if !ec.Timestamp.IsZero() {
		if cfg.StartDate != nil && ec.Timestamp.Before(*cfg.StartDate) {
			return false, GateTimeWindow
		}
		if cfg.EndDate != nil && ec.Timestamp.After(*cfg.EndDate) {
			return false, GateTimeWindow
		}

		// 2. Business hours
		if cfg.BusinessHoursOnly && !withinBusinessHours(ec.Timestamp) {
			return false, GateBusinessHours
		}
	}

	// 3. Region targeting
	if len(cfg.TargetRegions) > 0 && ec.Region != "" {
		if !slices.Contains(cfg.TargetRegions, ec.Region) {
			return false, GateRegion
		}
	}

	// 4. Cohort targeting
	if len(cfg.UserCohorts) > 0 && ec.UserCohort != "" {
		if !slices.Contains(cfg.UserCohorts, ec.UserCohort) {
			return false, GateCohort
		}
	}

	// 5. Percentage bucketing
	if Bucket(ec.UserID, flagKey) >= cfg.Percentage {
		return false, GatePercentage
	}

	return true, GateNone
}

// Bucket assigns a user to a stable 0-99 percentile bucket for a flag.
// The hash input is "userID-flagKey"; an empty user ID still yields a
// deterministic (if effectively arbitrary) bucket per flag.
func Bucket(userID, flagKey string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte("-"))
	h.Write([]byte(flagKey))
	return int(h.Sum32() % 100)
}

// withinBusinessHours reports whether t falls on a weekday between 09:00
// and 18:00 in t's own location.
func withinBusinessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := t.Hour()
	return hour >= businessHoursStart && hour < businessHoursEnd
}
