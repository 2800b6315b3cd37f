package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smiling-critters/critter-gateway/internal/auth"
	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/filter/policy"
	"github.com/smiling-critters/critter-gateway/internal/httputil"
	"github.com/smiling-critters/critter-gateway/internal/store"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

const (
	defaultFlagLimit    = 50
	defaultSessionLimit = 20
	maxListLimit        = 500
)

// ListFlags handles GET /v1/parent/flags
func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	var (
		flags []store.Flag
		err   error
	)
	if r.URL.Query().Get("all") == "true" {
		flags, err = h.store.AllFlags(r.Context(), listLimit(r, defaultFlagLimit))
	} else {
		flags, err = h.store.UnacknowledgedFlags(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list flags", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to list flags")
		return
	}
	if flags == nil {
		flags = []store.Flag{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

// AcknowledgeFlag handles POST /v1/parent/flags/{id}/ack
func (h *Handler) AcknowledgeFlag(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteBadRequestError(w, reqID, "Invalid flag id")
		return
	}
	err = h.store.AcknowledgeFlag(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, reqID, "Flag not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to acknowledge flag", "request_id", reqID, "flag_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to acknowledge flag")
		return
	}
	h.logger.Info("flag acknowledged", "request_id", reqID, "flag_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListSettings handles GET /v1/parent/settings. Secrets are masked.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	all, err := h.store.All(r.Context())
	if err != nil {
		h.logger.Error("failed to list settings", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to list settings")
		return
	}
	for k, v := range all {
		all[k] = maskSetting(k, v)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"settings": all})
}

// UpdateSetting handles PUT /v1/parent/settings/{key}
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)
	key := chi.URLParam(r, "key")

	var req types.UpdateSettingRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	value, err := normalizeSetting(key, req.Value)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	if err := h.store.Set(r.Context(), key, value); err != nil {
		h.logger.Error("failed to update setting", "request_id", reqID, "key", key, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to update setting")
		return
	}

	switch key {
	case config.KeyLocalEndpoint, config.KeyLocalModel, config.KeyCloudAPIKey:
		h.router.Reset()
	}

	h.logger.Info("setting updated", "request_id", reqID, "key", key)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"key": key, "value": maskSetting(key, value)})
}

// ListSessions handles GET /v1/parent/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	sessions, err := h.store.RecentSessions(r.Context(), listLimit(r, defaultSessionLimit))
	if err != nil {
		h.logger.Error("failed to list sessions", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type statsResponse struct {
	store.UsageStats
	MinutesToday      int `json:"minutes_today"`
	DailyLimitMinutes int `json:"daily_limit_min"`
}

// Stats handles GET /v1/parent/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	st, err := h.store.UsageStats(r.Context())
	if err != nil {
		h.logger.Error("failed to load usage stats", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load usage stats")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statsResponse{
		UsageStats:        st,
		MinutesToday:      h.minutesToday(r.Context(), h.now()),
		DailyLimitMinutes: h.prefs.Preferences(r.Context()).DailyLimitMinutes,
	})
}

func listLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxListLimit)
}

// maskSetting hides secret values, keeping the last four characters of an
// API key so parents can tell keys apart.
func maskSetting(key, value string) string {
	if !config.SecretKeys[key] || value == "" {
		return value
	}
	if key == config.KeyCloudAPIKey && len(value) > 8 {
		return strings.Repeat("•", 8) + value[len(value)-4:]
	}
	return strings.Repeat("•", 8)
}

// normalizeSetting validates a parent-supplied value and returns the form
// to store.
func normalizeSetting(key, value string) (string, error) {
	if _, ok := config.DefaultSettings()[key]; !ok {
		return "", fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(settingKeys(), ", "))
	}
	value = strings.TrimSpace(value)

	switch key {
	case config.KeyParentPIN:
		if err := auth.ValidatePIN(value); err != nil {
			return "", err
		}
		return auth.HashPIN(value), nil
	case config.KeyPreferLocal, config.KeyReminder30, config.KeyReminder60:
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return "1", nil
		case "0", "false", "no", "off":
			return "0", nil
		}
		return "", fmt.Errorf("%s must be a boolean", key)
	case config.KeyDailyLimit:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 24*60 {
			return "", fmt.Errorf("%s must be minutes between 0 and 1440", key)
		}
		return strconv.Itoa(n), nil
	case config.KeyQuietHoursStart, config.KeyQuietHoursEnd:
		if value == "" {
			return "", nil
		}
		if _, ok := policy.ParseClock(value); !ok {
			return "", fmt.Errorf("%s must be a time like 20:00", key)
		}
		return value, nil
	case config.KeyLocalEndpoint:
		if value == "" {
			return "", nil
		}
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", fmt.Errorf("%s must be an http(s) URL", key)
		}
		return strings.TrimRight(value, "/"), nil
	case config.KeyChildName:
		if len([]rune(value)) > 40 {
			return "", fmt.Errorf("%s is too long", key)
		}
		return value, nil
	}
	return value, nil
}

func settingKeys() []string {
	keys := make([]string, 0, len(config.DefaultSettings()))
	for k := range config.DefaultSettings() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
