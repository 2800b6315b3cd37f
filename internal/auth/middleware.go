package auth

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/httputil"
	"github.com/smiling-critters/critter-gateway/internal/ratelimit"
	"github.com/smiling-critters/critter-gateway/internal/telemetry"
)

// HeaderParentPIN carries the parent PIN on every parent request.
const HeaderParentPIN = "X-Parent-PIN"

const (
	maxFailures          = 5
	maxHouseholdFailures = 20
	lockoutWindow        = 15 * time.Minute

	householdKey = "pin:household"
)

// PINSource reads the stored parent PIN.
type PINSource interface {
	Get(ctx context.Context, key string) (string, error)
}

// AttemptLimiter records failed PIN attempts per client.
type AttemptLimiter interface {
	Check(ctx context.Context, key string, limit int64, window time.Duration) (ratelimit.LimitResult, error)
	Count(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Middleware returns a chi middleware that admits requests carrying the
// parent PIN. Clients with too many recent failures are locked out even
// with the right PIN, and so is everyone once the household as a whole
// has too many. Clients are keyed on r.RemoteAddr, so forwarded headers
// only count when a trusted proxy rewrote it upstream. attempts may be nil.
func Middleware(pins PINSource, attempts AttemptLimiter, metrics *telemetry.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get(httputil.HeaderRequestID)
			ctx := r.Context()
			client := clientHost(r)
			clientKey := "pin:" + client

			if attempts != nil && lockedOut(ctx, attempts, clientKey, householdKey, logger) {
				logger.Warn("parent pin locked out", "request_id", reqID, "client", client)
				if metrics != nil {
					metrics.RecordRateLimited("parent_pin")
				}
				httputil.WriteRateLimitError(w, reqID, "Too many wrong PIN attempts. Try again later.")
				return
			}

			provided := r.Header.Get(HeaderParentPIN)
			if provided == "" {
				httputil.WriteAuthError(w, reqID, "Missing X-Parent-PIN header")
				return
			}

			stored, err := pins.Get(ctx, config.KeyParentPIN)
			if err != nil {
				logger.Error("parent pin lookup failed", "request_id", reqID, "error", err)
				httputil.WriteInternalError(w, reqID, "Internal error during authentication")
				return
			}
			if stored == "" {
				stored = config.DefaultSettings()[config.KeyParentPIN]
			}

			if !VerifyPIN(stored, provided) {
				logger.Warn("parent pin rejected", "request_id", reqID, "client", client)
				if attempts != nil {
					if _, err := attempts.Check(ctx, clientKey, maxFailures+1, lockoutWindow); err != nil {
						logger.Error("failed to record pin failure", "request_id", reqID, "key", clientKey, "error", err)
					}
					if _, err := attempts.Check(ctx, householdKey, maxHouseholdFailures+1, lockoutWindow); err != nil {
						logger.Error("failed to record pin failure", "request_id", reqID, "key", householdKey, "error", err)
					}
				}
				httputil.WriteAuthError(w, reqID, "Wrong parent PIN")
				return
			}

			if attempts != nil {
				for _, key := range []string{clientKey, householdKey} {
					if err := attempts.Reset(ctx, key); err != nil {
						logger.Warn("failed to clear pin failures", "request_id", reqID, "key", key, "error", err)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// lockedOut reports whether either counter has reached its limit. Counter
// errors are logged and treated as no failures.
func lockedOut(ctx context.Context, attempts AttemptLimiter, clientKey, householdKey string, logger *slog.Logger) bool {
	limits := []struct {
		key string
		max int64
	}{
		{clientKey, maxFailures},
		{householdKey, maxHouseholdFailures},
	}
	for _, l := range limits {
		n, err := attempts.Count(ctx, l.key, lockoutWindow)
		if err != nil {
			logger.Warn("pin failure count unavailable", "key", l.key, "error", err)
			continue
		}
		if n >= l.max {
			return true
		}
	}
	return false
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
