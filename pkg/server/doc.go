// Package server provides the HTTP API for flag evaluation and management.
//
// The read path is POST /v1/evaluate, returning the evaluation envelope
// {enabled, flag_key, tenant_id, evaluated_at, source, ttl}. Management
// endpoints cover flag creation and update, tenant overrides, kill-switch
// control, and cache invalidation. Flag deletion is rejected with 405 by
// policy.
//
// Classified store errors map onto HTTP status codes (validation 400,
// not_found 404, conditional_check_failed 409, throttled 429, unavailable
// 503); evaluation never surfaces store failures at all, only
// configuration errors.
package server
