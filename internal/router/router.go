// Package router decides which inference backend answers a chat turn and
// turns every failure into a child-friendly token.
package router

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/filter/pii"
	"github.com/smiling-critters/critter-gateway/internal/router/adapters"
	"github.com/smiling-critters/critter-gateway/internal/telemetry"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

// Fixed replies used when no backend produced a full answer.
const (
	ReconnectNudge   = " ...oops, I lost my train of thought! 🌟 Can you say that again?"
	NoBackendMessage = "I can't reach any of my thinking helpers right now! 🔌 Please ask a grown-up to start Ollama on this computer, or to add a Gemini API key in the parent dashboard."
	errorDetailRunes = 80
)

// Backend names reported in Outcome and Status.
const (
	BackendLocal       = "local"
	BackendCloud       = "cloud"
	BackendRateLimited = "rate_limited"
	BackendNone        = "none"
)

// Outcome values.
const (
	OutcomeOK          = "ok"
	OutcomePartial     = "partial"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
)

// ConfigResolver supplies the backend configuration for one call.
type ConfigResolver interface {
	Resolve(ctx context.Context) config.RouterConfig
}

// Outcome describes how a Send finished. It is complete once the sequence
// has been fully consumed.
type Outcome struct {
	Backend  string
	Result   string
	Tokens   int
	Fallback bool
	Err      error
}

// Router owns the availability cache and backoff tracker it routes with.
type Router struct {
	resolver     ConfigResolver
	local        adapters.Backend
	cloud        adapters.Backend
	availability *AvailabilityCache
	backoff      *BackoffTracker
	sanitizer    *pii.Sanitizer
	routing      func() config.RoutingConfig
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

// Deps are the collaborators of a Router. Metrics may be nil.
type Deps struct {
	Resolver     ConfigResolver
	Local        adapters.Backend
	Cloud        adapters.Backend
	Availability *AvailabilityCache
	Backoff      *BackoffTracker
	Routing      func() config.RoutingConfig
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger
}

func New(d Deps) *Router {
	r := &Router{
		resolver:     d.Resolver,
		local:        d.Local,
		cloud:        d.Cloud,
		availability: d.Availability,
		backoff:      d.Backoff,
		sanitizer:    pii.NewSanitizer(),
		routing:      d.Routing,
		metrics:      d.Metrics,
		logger:       d.Logger,
	}
	if r.metrics != nil {
		r.availability.OnProbe(func(_ string, ok bool) { r.metrics.RecordProbe(ok) })
	}
	return r
}

// BuildFromConfig wires the production backends from routing config.
// Timeouts and cloud pacing are read from routing on every call, so a
// config reload applies to the next request.
func BuildFromConfig(resolver ConfigResolver, routing func() config.RoutingConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Router {
	streamClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	probeClient := &http.Client{Transport: streamClient.Transport}

	backoff := NewBackoffTracker(nil)
	return New(Deps{
		Resolver:     resolver,
		Local:        adapters.NewOllamaAdapter(streamClient, routing),
		Cloud:        adapters.NewGeminiAdapter(streamClient, backoff, routing, logger),
		Availability: NewAvailabilityCache(probeClient, routing, nil),
		Backoff:      backoff,
		Routing:      routing,
		Metrics:      metrics,
		Logger:       logger,
	})
}

// Send streams a reply to messages. The sequence always yields at least one
// token and never fails: every error path ends in a friendly message.
func (r *Router) Send(ctx context.Context, systemPrompt string, messages []types.Message, preferLocal bool) iter.Seq[string] {
	return r.SendWithOutcome(ctx, systemPrompt, messages, preferLocal, nil)
}

// SendWithOutcome is Send that also reports how the reply was produced.
// out may be nil.
func (r *Router) SendWithOutcome(ctx context.Context, systemPrompt string, messages []types.Message, preferLocal bool, out *Outcome) iter.Seq[string] {
	if out == nil {
		out = &Outcome{}
	}
	return func(yield func(string) bool) {
		start := time.Now()
		defer func() { r.record(out, start) }()

		cfg := r.resolver.Resolve(ctx)

		if preferLocal && r.availability.IsAvailable(ctx, cfg.LocalEndpoint) {
			out.Backend = BackendLocal
			done, err := r.streamFrom(ctx, r.local, systemPrompt, messages, cfg, out, yield)
			switch {
			case done:
				return
			case err != nil && out.Tokens > 0:
				r.logger.Warn("local stream failed mid-reply", "tokens", out.Tokens, "error", err)
				out.Result, out.Err = OutcomePartial, err
				yield(ReconnectNudge)
				return
			case ctx.Err() != nil:
				out.Result = OutcomeCanceled
				return
			}
			reason := "empty_stream"
			if err != nil {
				reason = "local_error"
				r.logger.Info("local backend failed before first token, falling back", "error", err)
			}
			out.Fallback = true
			if r.metrics != nil {
				r.metrics.RecordFallback(reason)
			}
		}

		if cfg.HasCloudKey() {
			out.Backend = BackendCloud
			clean, changed := r.sanitizer.SanitizeMessages(messages)
			if changed > 0 {
				r.logger.Debug("sanitised messages for cloud backend", "messages", changed, "patterns", r.piiPatterns(messages))
			}
			done, err := r.streamFrom(ctx, r.cloud, systemPrompt, clean, cfg, out, yield)
			if done {
				return
			}
			if err != nil {
				out.Err = err
				var rl *adapters.RateLimitedError
				switch {
				case out.Tokens > 0:
					out.Result = OutcomePartial
					yield(ReconnectNudge)
				case ctx.Err() != nil:
					out.Result = OutcomeCanceled
				case errors.As(err, &rl):
					out.Result = OutcomeRateLimited
					r.logger.Warn("cloud backend cooling down",
						"retry_in_s", rl.Seconds(),
						"cooldown_until", r.backoff.CooldownUntil(),
					)
					if r.metrics != nil {
						r.metrics.RecordRateLimited("cloud")
					}
					yield(WaitMessage(rl.Seconds()))
				default:
					r.logger.Error("cloud backend failed", "error", err)
					out.Result = OutcomeError
					yield(ErrorMessage(err))
				}
				return
			}
		}

		if out.Backend == "" {
			out.Backend = BackendNone
		}
		out.Result = OutcomeUnavailable
		yield(NoBackendMessage)
	}
}

// streamFrom forwards tokens from b. done is true when the caller should stop:
// the stream ended cleanly with tokens, or the consumer stopped pulling.
func (r *Router) streamFrom(ctx context.Context, b adapters.Backend, systemPrompt string, messages []types.Message, cfg config.RouterConfig, out *Outcome, yield func(string) bool) (done bool, err error) {
	for tok, err := range b.Stream(ctx, systemPrompt, messages, cfg) {
		if err != nil {
			return false, err
		}
		out.Tokens++
		if !yield(tok) {
			out.Result = OutcomeCanceled
			return true, nil
		}
	}
	if out.Tokens > 0 {
		out.Result = OutcomeOK
		return true, nil
	}
	return false, nil
}

func (r *Router) record(out *Outcome, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordTurn(telemetry.TurnLabels{
		Backend:    out.Backend,
		Outcome:    out.Result,
		DurationMs: float64(time.Since(start).Milliseconds()),
		Tokens:     out.Tokens,
	})
}

// piiPatterns names the personal-detail patterns found in messages, once each.
func (r *Router) piiPatterns(messages []types.Message) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range messages {
		for _, d := range r.sanitizer.Scan(m.Content) {
			if !seen[d.PatternName] {
				seen[d.PatternName] = true
				names = append(names, d.PatternName)
			}
		}
	}
	return names
}

// Reset clears the availability cache and the cloud cooldown.
func (r *Router) Reset() {
	r.availability.Reset()
	r.backoff.Reset()
}

// WaitMessage is the reply while the cloud backend cools down.
func WaitMessage(seconds int) string {
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("Phew, I've been chatting so much I need a tiny rest! 😴 Can we try again in %d seconds?", seconds)
}

// ErrorMessage is the reply when the cloud backend failed for another reason.
func ErrorMessage(err error) string {
	detail := []rune(err.Error())
	if len(detail) > errorDetailRunes {
		detail = append(detail[:errorDetailRunes], '…')
	}
	return fmt.Sprintf("Oops, my thinking cloud got tangled! 🌥️ Please try again in a moment. (%s)", string(detail))
}
