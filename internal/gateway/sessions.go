package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smiling-critters/critter-gateway/internal/httputil"
	"github.com/smiling-critters/critter-gateway/internal/persona"
	"github.com/smiling-critters/critter-gateway/internal/router"
	"github.com/smiling-critters/critter-gateway/internal/store"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

const maxBodyBytes = 64 * 1024

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

type statusResponse struct {
	router.Status
	PreferLocal bool `json:"prefer_local"`
}

// Status handles GET /v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		Status:      h.router.CheckStatus(r.Context()),
		PreferLocal: h.prefs.Preferences(r.Context()).PreferLocal,
	})
}

// Personas handles GET /v1/personas
func (h *Handler) Personas(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"personas": persona.All()})
}

type startSessionResponse struct {
	Session  store.Session   `json:"session"`
	Persona  persona.Persona `json:"persona"`
	Greeting string          `json:"greeting"`
}

// StartSession handles POST /v1/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	var req types.StartSessionRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.Persona != "" && !persona.Known(req.Persona) {
		httputil.WriteBadRequestError(w, reqID, "Unknown persona: "+req.Persona)
		return
	}
	p := persona.Lookup(req.Persona)

	sess, err := h.store.StartSession(r.Context(), string(p.ID))
	if err != nil {
		h.logger.Error("failed to start session", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to start session")
		return
	}

	h.logger.Info("session started", "request_id", reqID, "session_id", sess.ID, "persona", p.ID)
	httputil.WriteJSON(w, http.StatusCreated, startSessionResponse{
		Session:  sess,
		Persona:  p,
		Greeting: p.Greeting(h.prefs.Preferences(r.Context()).ChildName),
	})
}

// EndSession handles POST /v1/sessions/{id}/end
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	id, ok := sessionIDParam(w, r, reqID)
	if !ok {
		return
	}
	sess, err := h.store.EndSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, reqID, "Session not found or already ended")
		return
	}
	if err != nil {
		h.logger.Error("failed to end session", "request_id", reqID, "session_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to end session")
		return
	}

	if h.usage != nil {
		if err := h.usage.RecordSession(r.Context(), h.now(), sess.Elapsed(h.now())); err != nil {
			h.logger.Warn("failed to record daily usage", "session_id", id, "error", err)
		}
	}

	h.logger.Info("session ended",
		"request_id", reqID,
		"session_id", id,
		"duration_s", sess.DurationSeconds,
		"messages", sess.MessageCount,
	)
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func sessionIDParam(w http.ResponseWriter, r *http.Request, reqID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody reads a JSON body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, reqID string, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	err := json.NewDecoder(body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.WriteBadRequestError(w, reqID, "Request body too large")
		return false
	}
	httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+strings.TrimPrefix(err.Error(), "json: "))
	return false
}
