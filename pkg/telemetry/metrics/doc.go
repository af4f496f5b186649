// Package metrics provides Prometheus instrumentation for the flag
// evaluation path.
//
// # Metrics
//
// All metrics share the configured namespace (default "lantern"):
//
//   - evaluations_total{result,source}: evaluation outcomes by decision and
//     origin (cache, database, kill_switch, fallback)
//   - evaluation_duration_seconds: end-to-end evaluation latency
//   - cache_hits_total / cache_misses_total / cache_entries: decision cache
//     performance
//   - store_errors_total{operation,class}: classified store failures
//   - kill_switch_engaged_total{scope}: evaluations short-circuited by a
//     kill-switch
//   - rollout_rejections_total{gate}: rollout evaluations rejected, by gate
//
// The Collector registers against a private registry so tests can construct
// independent collectors without duplicate-registration panics. Handler()
// exposes the registry in Prometheus exposition format.
package metrics
