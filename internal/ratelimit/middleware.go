package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/httputil"
	"github.com/smiling-critters/critter-gateway/internal/telemetry"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"
)

// TurnMiddleware limits chat turns per session. The session is taken from
// the chi URL parameter "id".
func TurnMiddleware(limiter Checker, cfg func() config.RateLimitConfig, metrics *telemetry.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := cfg()
			sessionID := chi.URLParam(r, "id")
			if !rc.Enabled || rc.TurnsPerWindow <= 0 || sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqID := w.Header().Get(httputil.HeaderRequestID)

			result, _ := limiter.Check(r.Context(), "turns:"+sessionID, int64(rc.TurnsPerWindow), rc.Window)

			w.Header().Set(headerRateLimitLimit, strconv.Itoa(rc.TurnsPerWindow))
			w.Header().Set(headerRateLimitRemaining, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				logger.Warn("turn rate limit exceeded",
					"request_id", reqID,
					"session_id", sessionID,
					"limit", rc.TurnsPerWindow,
					"window", rc.Window,
				)
				if metrics != nil {
					metrics.RecordRateLimited("session")
				}
				secs := int(result.RetryAfter.Round(time.Second) / time.Second)
				w.Header().Set(headerRetryAfter, strconv.Itoa(secs))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Whoa, so many messages! Let's take a breath and try again in %d seconds.", secs))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
