package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/filter"
	"github.com/smiling-critters/critter-gateway/internal/filter/policy"
	"github.com/smiling-critters/critter-gateway/internal/router"
	"github.com/smiling-critters/critter-gateway/internal/store"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]store.Session
	messages  []store.StoredMessage
	flags     []store.Flag
	reminders map[string]bool
	settings  map[string]string
	now       func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		sessions:  map[uuid.UUID]store.Session{},
		reminders: map[string]bool{},
		settings:  map[string]string{},
		now:       now,
	}
}

func (m *memStore) StartSession(_ context.Context, personaID string) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := store.Session{ID: uuid.New(), PersonaID: personaID, StartedAt: m.now()}
	m.sessions[s.ID] = s
	return s, nil
}

// startedAt adds a session that began at t.
func (m *memStore) startedAt(personaID string, t time.Time) store.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := store.Session{ID: uuid.New(), PersonaID: personaID, StartedAt: t}
	m.sessions[s.ID] = s
	return s
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memStore) EndSession(_ context.Context, id uuid.UUID) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.Active() {
		return store.Session{}, store.ErrNotFound
	}
	end := m.now()
	dur := int(end.Sub(s.StartedAt).Seconds())
	s.EndedAt, s.DurationSeconds = &end, &dur
	for _, msg := range m.messages {
		if msg.SessionID == id && msg.Role == types.RoleUser {
			s.MessageCount++
		}
	}
	m.sessions[id] = s
	return s, nil
}

func (m *memStore) RecentSessions(_ context.Context, limit int) ([]store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkReminder(_ context.Context, id uuid.UUID, minutes int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", id, minutes)
	if m.reminders[key] {
		return false, nil
	}
	m.reminders[key] = true
	return true, nil
}

func (m *memStore) SaveMessage(_ context.Context, sessionID uuid.UUID, role types.Role, content, personaID string, flagged int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.messages) + 1)
	m.messages = append(m.messages, store.StoredMessage{
		ID: id, SessionID: sessionID, Role: role, Content: content,
		PersonaID: personaID, CreatedAt: m.now(), Flagged: flagged,
	})
	return id, nil
}

func (m *memStore) SessionMessages(_ context.Context, sessionID uuid.UUID) ([]store.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.StoredMessage
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) SaveFlag(_ context.Context, sessionID uuid.UUID, messageID int64, level filter.Level, reason, note string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.flags) + 1)
	f := store.Flag{ID: id, SessionID: sessionID, Level: level, Reason: reason, Note: note, CreatedAt: m.now()}
	if messageID > 0 {
		f.MessageID = &messageID
	}
	m.flags = append(m.flags, f)
	return id, nil
}

func (m *memStore) UnacknowledgedFlags(context.Context) ([]store.Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Flag
	for _, f := range m.flags {
		if !f.Acknowledged {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) AllFlags(_ context.Context, limit int) ([]store.Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]store.Flag(nil), m.flags...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) AcknowledgeFlag(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.flags {
		if m.flags[i].ID == id {
			m.flags[i].Acknowledged = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) UsageStats(context.Context) (store.UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return store.UsageStats{TotalSessions: len(m.sessions), TotalFlags: len(m.flags)}, nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[key], nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memStore) All(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) flagsSnapshot() []store.Flag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Flag(nil), m.flags...)
}

func (m *memStore) messagesSnapshot() []store.StoredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.StoredMessage(nil), m.messages...)
}

// fakeRouter replies with fixed tokens and records what it was sent.
type fakeRouter struct {
	tokens  []string
	backend string
	status  router.Status

	calls  int
	resets int
	system string
	sent   []types.Message
	local  bool
}

func (f *fakeRouter) SendWithOutcome(_ context.Context, systemPrompt string, messages []types.Message, preferLocal bool, out *router.Outcome) iter.Seq[string] {
	return func(yield func(string) bool) {
		f.calls++
		f.system, f.sent, f.local = systemPrompt, messages, preferLocal
		out.Backend, out.Result = f.backend, router.OutcomeOK
		for _, tok := range f.tokens {
			out.Tokens++
			if !yield(tok) {
				return
			}
		}
	}
}

func (f *fakeRouter) CheckStatus(context.Context) router.Status { return f.status }
func (f *fakeRouter) Reset()                                    { f.resets++ }

type fixedPrefs config.Preferences

func (p fixedPrefs) Preferences(context.Context) config.Preferences { return config.Preferences(p) }

func defaultPrefs() fixedPrefs {
	return fixedPrefs{PreferLocal: true, DailyLimitMinutes: 45, Reminder30: true, Reminder60: true, ChildName: "Maya"}
}

type fixedPolicy struct {
	decision policy.Decision
	inputs   []policy.Input
}

func (p *fixedPolicy) Check(_ context.Context, in policy.Input) policy.Decision {
	p.inputs = append(p.inputs, in)
	return p.decision
}

type memUsage struct {
	minutes  int
	recorded []time.Duration
}

func (u *memUsage) MinutesToday(context.Context, time.Time) (int, error) { return u.minutes, nil }

func (u *memUsage) RecordSession(_ context.Context, _ time.Time, length time.Duration) error {
	u.recorded = append(u.recorded, length)
	return nil
}

var testNow = time.Date(2026, 9, 14, 16, 0, 0, 0, time.UTC)

type testEnv struct {
	store  *memStore
	router *fakeRouter
	policy *fixedPolicy
	usage  *memUsage
	prefs  fixedPrefs
	srv    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  newMemStore(func() time.Time { return testNow }),
		router: &fakeRouter{tokens: []string{"Hello", " there", "!"}, backend: router.BackendLocal},
		policy: &fixedPolicy{decision: policy.Decision{Allow: true}},
		usage:  &memUsage{},
		prefs:  defaultPrefs(),
	}
	env.build()
	return env
}

func (e *testEnv) build() {
	h := NewHandler(Deps{
		Store:    e.store,
		Router:   e.router,
		Prefs:    e.prefs,
		Policy:   e.policy,
		Usage:    e.usage,
		Logger:   discard(),
		Location: func() *time.Location { return time.UTC },
		Now:      func() time.Time { return testNow },
		Version:  "test",
	})
	e.srv = h.Routes(RouteOptions{})
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.Data != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		}
	}
	return events
}

func eventsNamed(events []sseEvent, name string) []sseEvent {
	var out []sseEvent
	for _, e := range events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func tokensOf(t *testing.T, events []sseEvent) string {
	t.Helper()
	var b strings.Builder
	for _, e := range eventsNamed(events, "") {
		var tok types.TokenEvent
		if err := json.Unmarshal([]byte(e.Data), &tok); err != nil {
			t.Fatalf("decode token %q: %v", e.Data, err)
		}
		b.WriteString(tok.Token)
	}
	return b.String()
}

func httptestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	return serveOn(e.srv, req)
}

func serveOn(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
