package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/ratelimit"
)

type mockPINs struct {
	pin string
	err error
}

func (m mockPINs) Get(_ context.Context, key string) (string, error) {
	if key != config.KeyParentPIN {
		return "", nil
	}
	return m.pin, m.err
}

// mockAttempts counts failures per key in memory.
type mockAttempts struct {
	failures map[string]int64
}

func newMockAttempts() *mockAttempts { return &mockAttempts{failures: map[string]int64{}} }

func (m *mockAttempts) Check(_ context.Context, key string, limit int64, _ time.Duration) (ratelimit.LimitResult, error) {
	m.failures[key]++
	return ratelimit.LimitResult{Allowed: m.failures[key] <= limit}, nil
}

func (m *mockAttempts) Count(_ context.Context, key string, _ time.Duration) (int64, error) {
	return m.failures[key], nil
}

func (m *mockAttempts) Reset(_ context.Context, key string) error {
	delete(m.failures, key)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func serve(h http.Handler, pin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/parent/flags", nil)
	req.RemoteAddr = "192.168.1.20:51234"
	if pin != "" {
		req.Header.Set(HeaderParentPIN, pin)
	}
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "test-req")
	h.ServeHTTP(w, req)
	return w
}

func okHandler(called *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called++
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_MissingHeader(t *testing.T) {
	var called int
	h := Middleware(mockPINs{pin: "1234"}, nil, nil, discard())(okHandler(&called))

	if w := serve(h, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if called != 0 {
		t.Error("handler should not be called")
	}
}

func TestMiddleware_WrongAndRightPIN(t *testing.T) {
	var called int
	h := Middleware(mockPINs{pin: HashPIN("2468")}, nil, nil, discard())(okHandler(&called))

	if w := serve(h, "1234"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong pin: expected 401, got %d", w.Code)
	}
	if w := serve(h, "2468"); w.Code != http.StatusOK {
		t.Errorf("right pin: expected 200, got %d", w.Code)
	}
	if called != 1 {
		t.Errorf("handler calls = %d", called)
	}
}

func TestMiddleware_DefaultPINWhenUnset(t *testing.T) {
	var called int
	h := Middleware(mockPINs{}, nil, nil, discard())(okHandler(&called))

	if w := serve(h, config.DefaultSettings()[config.KeyParentPIN]); w.Code != http.StatusOK {
		t.Errorf("expected default pin to be accepted, got %d", w.Code)
	}
}

func TestMiddleware_StoreError(t *testing.T) {
	var called int
	h := Middleware(mockPINs{err: errors.New("db down")}, nil, nil, discard())(okHandler(&called))

	if w := serve(h, "1234"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestMiddleware_LockoutAfterFailures(t *testing.T) {
	var called int
	attempts := newMockAttempts()
	h := Middleware(mockPINs{pin: "2468"}, attempts, nil, discard())(okHandler(&called))

	for i := 0; i < maxFailures; i++ {
		if w := serve(h, "0000"); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, w.Code)
		}
	}
	if w := serve(h, "2468"); w.Code != http.StatusTooManyRequests {
		t.Errorf("locked out client with right pin: expected 429, got %d", w.Code)
	}
	if called != 0 {
		t.Error("handler must not run while locked out")
	}
}

func TestMiddleware_SuccessClearsFailures(t *testing.T) {
	var called int
	attempts := newMockAttempts()
	h := Middleware(mockPINs{pin: "2468"}, attempts, nil, discard())(okHandler(&called))

	serve(h, "0000")
	serve(h, "0000")
	if w := serve(h, "2468"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if n := attempts.failures["pin:192.168.1.20"]; n != 0 {
		t.Errorf("failures after success = %d", n)
	}
}

func TestMiddleware_HouseholdLockoutAcrossClients(t *testing.T) {
	var called int
	attempts := newMockAttempts()
	h := Middleware(mockPINs{pin: "2468"}, attempts, nil, discard())(okHandler(&called))

	for i := range maxHouseholdFailures {
		req := httptest.NewRequest(http.MethodGet, "/v1/parent/flags", nil)
		req.RemoteAddr = fmt.Sprintf("192.168.1.%d:5000", i+1)
		req.Header.Set(HeaderParentPIN, "0000")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if n := attempts.failures[householdKey]; n != maxHouseholdFailures {
		t.Fatalf("household failures = %d, want %d", n, maxHouseholdFailures)
	}
	if w := serve(h, "2468"); w.Code != http.StatusTooManyRequests {
		t.Errorf("fresh client after household lockout: expected 429, got %d", w.Code)
	}
	if called != 0 {
		t.Error("handler must not run while the household is locked out")
	}
}

// brokenAttempts fails every call, like an unreachable Redis.
type brokenAttempts struct{}

func (brokenAttempts) Check(context.Context, string, int64, time.Duration) (ratelimit.LimitResult, error) {
	return ratelimit.LimitResult{}, errors.New("redis down")
}

func (brokenAttempts) Count(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func (brokenAttempts) Reset(context.Context, string) error { return errors.New("redis down") }

func TestMiddleware_AttemptErrorsAreLogged(t *testing.T) {
	var (
		called int
		logs   bytes.Buffer
	)
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := Middleware(mockPINs{pin: "2468"}, brokenAttempts{}, nil, logger)(okHandler(&called))

	if w := serve(h, "0000"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong pin: expected 401, got %d", w.Code)
	}
	if !strings.Contains(logs.String(), "failed to record pin failure") {
		t.Errorf("missing record failure log:\n%s", logs.String())
	}
	if w := serve(h, "2468"); w.Code != http.StatusOK {
		t.Errorf("right pin: expected 200, got %d", w.Code)
	}
	if !strings.Contains(logs.String(), "failed to clear pin failures") {
		t.Errorf("missing reset failure log:\n%s", logs.String())
	}
}
