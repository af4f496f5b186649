package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"lantern-hq/lantern/pkg/flags"
	"lantern-hq/lantern/pkg/flags/evaluator"
	"lantern-hq/lantern/pkg/flags/management"
	"lantern-hq/lantern/pkg/flags/store"
)

// timeNow is swappable for handler tests.
var timeNow = time.Now

// evaluateRequest is the body of POST /v1/evaluate.
type evaluateRequest struct {
	FlagKey string                  `json:"flag_key"`
	Context flags.EvaluationContext `json:"context"`
	Rollout *flags.RolloutConfig    `json:"rollout,omitempty"`
}

// createFlagRequest is the body of POST /v1/flags.
type createFlagRequest struct {
	FlagKey        string     `json:"flag_key"`
	Description    string     `json:"description"`
	DefaultEnabled bool       `json:"default_enabled"`
	Owner          string     `json:"owner"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// updateFlagRequest is the body of PATCH /v1/flags/{key}.
type updateFlagRequest struct {
	flags.FlagUpdate
	Actor string `json:"actor"`
}

// overrideRequest is the body of PUT /v1/tenants/{tenant}/overrides/{key}.
type overrideRequest struct {
	Enabled bool   `json:"enabled"`
	Actor   string `json:"actor"`
}

// removeOverrideRequest is the body of DELETE on an override.
type removeOverrideRequest struct {
	Actor string `json:"actor"`
}

// killSwitchRequest is the body of PUT /v1/kill-switch. An empty flag key
// addresses the global switch.
type killSwitchRequest struct {
	FlagKey string `json:"flag_key,omitempty"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
	Actor   string `json:"actor"`
}

// invalidateCacheRequest is the body of POST /v1/cache/invalidate. With
// both fields set, one entry is dropped; otherwise the whole cache is.
type invalidateCacheRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	FlagKey  string `json:"flag_key,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Rollout != nil {
		if err := req.Rollout.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := s.evaluator.Evaluate(r.Context(), req.Context, req.FlagKey, req.Rollout)
	if err != nil {
		var confErr *evaluator.ConfigurationError
		if errors.As(err, &confErr) {
			writeError(w, http.StatusBadRequest, confErr.Error())
			return
		}
		// The evaluator contract says this cannot happen; keep the
		// fail-closed posture anyway.
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	all, err := s.management.ListFlags(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": all})
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	flag, err := s.management.GetFlag(r.Context(), r.PathValue("key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (s *Server) handleCreateFlag(w http.ResponseWriter, r *http.Request) {
	var req createFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	flag := &flags.Flag{
		Key:            req.FlagKey,
		Description:    req.Description,
		DefaultEnabled: req.DefaultEnabled,
		Owner:          req.Owner,
		ExpiresAt:      req.ExpiresAt,
	}
	if err := s.management.CreateFlag(r.Context(), flag); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, flag)
}

func (s *Server) handleUpdateFlag(w http.ResponseWriter, r *http.Request) {
	var req updateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.management.UpdateFlag(r.Context(), r.PathValue("key"), req.FlagUpdate, req.Actor); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	err := s.management.DeleteFlag(r.Context(), r.PathValue("key"))
	if errors.Is(err, management.ErrFlagDeletionNotAllowed) {
		writeError(w, http.StatusMethodNotAllowed, err.Error())
		return
	}
	writeStoreError(w, err)
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := s.management.SetTenantOverride(r.Context(),
		r.PathValue("tenant"), r.PathValue("key"), req.Enabled, req.Actor)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveOverride(w http.ResponseWriter, r *http.Request) {
	var req removeOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := s.management.RemoveTenantOverride(r.Context(),
		r.PathValue("tenant"), r.PathValue("key"), req.Actor)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// The flag-scoped route carries the key in the path; it wins over the
	// body field.
	flagKey := req.FlagKey
	if key := r.PathValue("key"); key != "" {
		flagKey = key
	}

	err := s.management.SetKillSwitch(r.Context(), flagKey, req.Enabled, req.Reason, req.Actor)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.TenantID != "" && req.FlagKey != "" {
		s.evaluator.InvalidateCache(req.TenantID, req.FlagKey)
	} else {
		s.evaluator.InvalidateAllCache()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": s.evaluator.Environment(),
	})
}

// writeStoreError maps a classified store error onto an HTTP status.
func writeStoreError(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	status := http.StatusInternalServerError
	switch store.Classify(err) {
	case store.ClassValidation:
		status = http.StatusBadRequest
	case store.ClassNotFound:
		status = http.StatusNotFound
	case store.ClassConditionalCheckFailed:
		status = http.StatusConflict
	case store.ClassAccessDenied:
		status = http.StatusForbidden
	case store.ClassThrottled:
		status = http.StatusTooManyRequests
	case store.ClassUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
