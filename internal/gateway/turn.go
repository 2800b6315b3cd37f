package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/filter"
	"github.com/smiling-critters/critter-gateway/internal/filter/policy"
	"github.com/smiling-critters/critter-gateway/internal/filter/safety"
	"github.com/smiling-critters/critter-gateway/internal/httputil"
	"github.com/smiling-critters/critter-gateway/internal/persona"
	"github.com/smiling-critters/critter-gateway/internal/router"
	"github.com/smiling-critters/critter-gateway/internal/store"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

const maxMessageRunes = 2000

// turn carries the state of one chat turn through the pipeline.
type turn struct {
	reqID   string
	session store.Session
	persona persona.Persona
	prefs   config.Preferences
	content string
	now     time.Time
	start   time.Time
}

// Turn handles POST /v1/sessions/{id}/messages. The reply is streamed as
// server-sent events.
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)
	ctx := r.Context()

	id, ok := sessionIDParam(w, r, reqID)
	if !ok {
		return
	}
	var req types.TurnRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httputil.WriteBadRequestError(w, reqID, "content is required")
		return
	}
	if utf8.RuneCountInString(content) > maxMessageRunes {
		httputil.WriteBadRequestError(w, reqID, "message is too long")
		return
	}

	sess, err := h.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, reqID, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load session", "request_id", reqID, "session_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load session")
		return
	}
	if !sess.Active() {
		httputil.WriteConflictError(w, reqID, "Session has ended")
		return
	}
	history, err := h.store.SessionMessages(ctx, id)
	if err != nil {
		h.logger.Error("failed to load transcript", "request_id", reqID, "session_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load session")
		return
	}

	now := h.now()
	t := &turn{
		reqID:   reqID,
		session: sess,
		persona: persona.Lookup(sess.PersonaID),
		prefs:   h.prefs.Preferences(ctx),
		content: content,
		now:     now,
		start:   now,
	}

	// Persistence outlives a client that hangs up mid-stream.
	persistCtx := context.WithoutCancel(ctx)

	if decision := h.checkPolicy(ctx, t); !decision.Allow {
		h.pause(persistCtx, w, t, decision)
		return
	}

	result := h.safety.CheckInput(content, string(t.persona.ID))
	userMsgID, err := h.store.SaveMessage(persistCtx, id, types.RoleUser, content, string(t.persona.ID), result.Level.Severity())
	if err != nil {
		h.logger.Error("failed to save message", "request_id", reqID, "session_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to save message")
		return
	}
	h.recordSafety(persistCtx, t, "input", userMsgID, content, result)

	sse, ok := startSSE(w, reqID)
	if !ok {
		return
	}
	sse.Event(eventSafety, types.SafetyEvent{Level: string(result.Level), Reason: result.Reason})

	if minutes, msg := h.wellness(persistCtx, t); msg != "" {
		sse.Event(eventWellness, types.WellnessEvent{Minutes: minutes, Message: msg})
	}

	if result.ShortCircuits() {
		reply := result.RedirectMessage
		sse.Data(types.TokenEvent{Token: reply})
		msgID := h.saveReply(persistCtx, t, reply, 0)
		sse.Event(eventDone, h.done(t, msgID, "", true, 1))
		return
	}

	transcript := append(store.Transcript(history), types.Message{Role: types.RoleUser, Content: content})

	var (
		out   router.Outcome
		reply strings.Builder
	)
	for tok := range h.router.SendWithOutcome(ctx, t.persona.SystemPrompt(), transcript, t.prefs.PreferLocal, &out) {
		reply.WriteString(tok)
		if err := sse.Data(types.TokenEvent{Token: tok}); err != nil {
			h.logger.Info("client went away mid-stream", "request_id", reqID, "session_id", id, "error", err)
			break
		}
	}

	text := reply.String()
	outResult := h.safety.CheckOutput(text)
	if outResult.ShortCircuits() {
		text = outResult.RedirectMessage
		sse.Event(eventReplace, types.ReplaceEvent{Content: text})
	}

	var msgID int64
	if text != "" {
		msgID = h.saveReply(persistCtx, t, text, outResult.Level.Severity())
	}
	h.recordSafety(persistCtx, t, "output", msgID, reply.String(), outResult)

	h.logger.Info("turn completed",
		"request_id", reqID,
		"session_id", id,
		"persona", t.persona.ID,
		"backend", out.Backend,
		"outcome", out.Result,
		"fallback", out.Fallback,
		"tokens", out.Tokens,
		"input_level", result.Level,
		"output_level", outResult.Level,
		"duration_ms", time.Since(t.start).Milliseconds(),
	)
	sse.Event(eventDone, h.done(t, msgID, out.Backend, false, out.Tokens))
}

func (h *Handler) checkPolicy(ctx context.Context, t *turn) policy.Decision {
	if h.policy == nil {
		return policy.Decision{Allow: true}
	}
	local := t.now.In(h.location())
	minutes := float64(h.minutesToday(ctx, t.now)) + t.session.Elapsed(t.now).Minutes()
	return h.policy.Check(ctx, policy.NewInput(local, t.prefs, minutes))
}

// pause answers with the persona's rest message instead of generating.
func (h *Handler) pause(ctx context.Context, w http.ResponseWriter, t *turn, d policy.Decision) {
	h.logger.Info("turn paused by screen-time policy",
		"request_id", t.reqID,
		"session_id", t.session.ID,
		"reason", d.Reason,
	)
	if h.metrics != nil {
		h.metrics.RecordPolicyDenial(d.Reason)
	}
	if _, err := h.store.SaveMessage(ctx, t.session.ID, types.RoleUser, t.content, string(t.persona.ID), 0); err != nil {
		h.logger.Error("failed to save message", "request_id", t.reqID, "error", err)
	}

	sse, ok := startSSE(w, t.reqID)
	if !ok {
		return
	}
	sse.Event(eventPause, types.PauseEvent{Reason: d.Reason})
	sse.Data(types.TokenEvent{Token: t.persona.Pause})
	msgID := h.saveReply(ctx, t, t.persona.Pause, 0)
	sse.Event(eventDone, h.done(t, msgID, "", true, 1))
}

// wellness returns the break reminder due now, at most once per threshold
// per session, honouring the parent's toggles.
func (h *Handler) wellness(ctx context.Context, t *turn) (int, string) {
	threshold := reminderThreshold(t.session.Elapsed(t.now).Minutes(), t.prefs)
	if threshold == 0 {
		return 0, ""
	}
	first, err := h.store.MarkReminder(ctx, t.session.ID, threshold)
	if err != nil {
		h.logger.Warn("failed to record wellness reminder", "session_id", t.session.ID, "error", err)
		return 0, ""
	}
	if !first {
		return 0, ""
	}
	return threshold, safety.WellnessReminder(float64(threshold), string(t.persona.ID))
}

// reminderThreshold picks the highest enabled threshold reached.
func reminderThreshold(elapsedMinutes float64, prefs config.Preferences) int {
	switch {
	case elapsedMinutes >= safety.StrongReminderMinutes && prefs.Reminder60:
		return safety.StrongReminderMinutes
	case elapsedMinutes >= safety.GentleReminderMinutes && prefs.Reminder30:
		return safety.GentleReminderMinutes
	default:
		return 0
	}
}

// recordSafety saves a parent flag for every non-safe result.
func (h *Handler) recordSafety(ctx context.Context, t *turn, direction string, msgID int64, text string, res filter.Result) {
	if h.metrics != nil && res.Level != "" {
		h.metrics.RecordSafety(direction, string(res.Level))
	}
	if !res.Flagged() {
		return
	}
	h.logger.Warn("safety flag raised",
		"request_id", t.reqID,
		"session_id", t.session.ID,
		"direction", direction,
		"level", res.Level,
		"category", res.Category,
		"rules", matchedRules(h.safety.Scan(text)),
	)
	if _, err := h.store.SaveFlag(ctx, t.session.ID, msgID, res.Level, res.Reason, res.ParentNote); err != nil {
		h.logger.Error("failed to save safety flag", "request_id", t.reqID, "session_id", t.session.ID, "error", err)
	}
}

func matchedRules(detections []safety.Detection) []string {
	seen := make(map[string]bool, len(detections))
	var names []string
	for _, d := range detections {
		if !seen[d.RuleName] {
			seen[d.RuleName] = true
			names = append(names, d.RuleName)
		}
	}
	return names
}

func (h *Handler) saveReply(ctx context.Context, t *turn, text string, flagged int) int64 {
	id, err := h.store.SaveMessage(ctx, t.session.ID, types.RoleAssistant, text, string(t.persona.ID), flagged)
	if err != nil {
		h.logger.Error("failed to save reply", "request_id", t.reqID, "session_id", t.session.ID, "error", err)
		return 0
	}
	return id
}

func (h *Handler) done(t *turn, msgID int64, backend string, redirected bool, tokens int) types.DoneEvent {
	return types.DoneEvent{
		SessionID:  t.session.ID.String(),
		MessageID:  msgID,
		Backend:    backend,
		Redirected: redirected,
		TokenCount: tokens,
		DurationMS: time.Since(t.start).Milliseconds(),
	}
}
