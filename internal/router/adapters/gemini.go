package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

// NoKeyToken is streamed when no cloud API key is configured.
const NoKeyToken = "Hmm, I'm having a little trouble connecting right now! Can you try again in a moment? 🌟"

var errThrottled = errors.New("cloud backend returned 429")

// GeminiAdapter talks to the Gemini streamGenerateContent API over SSE.
type GeminiAdapter struct {
	client   *http.Client
	cooldown Cooldown
	limiter  *rate.Limiter
	cfg      func() config.RoutingConfig
	logger   *slog.Logger
}

func NewGeminiAdapter(client *http.Client, cooldown Cooldown, cfg func() config.RoutingConfig, logger *slog.Logger) *GeminiAdapter {
	limit, burst := pacing(cfg())
	return &GeminiAdapter{
		client:   client,
		cooldown: cooldown,
		limiter:  rate.NewLimiter(limit, burst),
		cfg:      cfg,
		logger:   logger,
	}
}

func (a *GeminiAdapter) Name() string { return "cloud" }

// pacing maps routing config to limiter settings. A zero rate disables pacing.
func pacing(rc config.RoutingConfig) (rate.Limit, int) {
	limit := rate.Inf
	if rc.CloudRequestsPerSec > 0 {
		limit = rate.Limit(rc.CloudRequestsPerSec)
	}
	burst := rc.CloudBurst
	if burst < 1 {
		burst = 1
	}
	return limit, burst
}

// syncLimiter applies reloaded pacing settings to the live limiter.
func (a *GeminiAdapter) syncLimiter(rc config.RoutingConfig) {
	limit, burst := pacing(rc)
	if a.limiter.Limit() != limit {
		a.limiter.SetLimit(limit)
	}
	if a.limiter.Burst() != burst {
		a.limiter.SetBurst(burst)
	}
}

func (a *GeminiAdapter) Stream(ctx context.Context, systemPrompt string, messages []types.Message, cfg config.RouterConfig) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !cfg.HasCloudKey() {
			yield(NoKeyToken, nil)
			return
		}
		if remaining := a.cooldown.Remaining(); remaining > 0 {
			yield("", &RateLimitedError{Remaining: remaining})
			return
		}

		rc := a.cfg()
		ctx := ctx
		if rc.StreamTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, rc.StreamTimeout)
			defer cancel()
		}

		resp, err := a.open(ctx, rc, systemPrompt, messages, cfg)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var chunk geminiChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil || len(chunk.Candidates) == 0 {
				continue
			}
			for _, part := range chunk.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				if !yield(part.Text, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("read cloud stream: %w", err))
		}
	}
}

// open sends the request, retrying on 429 up to MaxCloudAttempts. Every 429
// trips the shared cooldown; a success after a 429 clears it.
func (a *GeminiAdapter) open(ctx context.Context, rc config.RoutingConfig, systemPrompt string, messages []types.Message, cfg config.RouterConfig) (*http.Response, error) {
	a.syncLimiter(rc)
	body, err := json.Marshal(newGeminiRequest(systemPrompt, messages, rc))
	if err != nil {
		return nil, fmt.Errorf("marshal cloud request: %w", err)
	}
	endpoint := rc.CloudEndpoint() + "?alt=sse&key=" + url.QueryEscape(cfg.CloudAPIKey)

	attempts := rc.MaxCloudAttempts
	if attempts < 1 {
		attempts = 1
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = rc.RetryInitialInterval
	expo.MaxInterval = rc.RetryMaxInterval
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)

	var (
		resp      *http.Response
		throttled bool
		attempt   int
	)
	op := func() error {
		attempt++
		if err := a.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("wait for cloud rate limiter: %w", err))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create http request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := a.client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("cloud chat request: %w", stripURL(err)))
		}

		switch r.StatusCode {
		case http.StatusOK:
			resp = r
			return nil
		case http.StatusTooManyRequests:
			wait := ParseRetryAfter(r.Header.Get("Retry-After"), time.Now(), rc.DefaultRetryAfter)
			io.Copy(io.Discard, io.LimitReader(r.Body, errorBodyLimit))
			r.Body.Close()
			a.cooldown.Trip(wait)
			throttled = true
			a.logger.Warn("cloud backend throttled", "attempt", attempt, "retry_after", wait)
			return errThrottled
		default:
			msg, _ := io.ReadAll(io.LimitReader(r.Body, errorBodyLimit))
			r.Body.Close()
			return backoff.Permanent(&StatusError{Backend: a.Name(), StatusCode: r.StatusCode, Body: strings.TrimSpace(string(msg))})
		}
	}

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, errThrottled) {
			return nil, &RateLimitedError{Remaining: a.cooldown.Remaining()}
		}
		return nil, err
	}
	if throttled {
		a.cooldown.Reset()
	}
	return resp, nil
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date. Missing or unusable values yield def.
func ParseRetryAfter(header string, now time.Time, def time.Duration) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return def
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	SystemInstruction geminiContent          `json:"system_instruction"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

func newGeminiRequest(systemPrompt string, messages []types.Message, rc config.RoutingConfig) geminiRequest {
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		role := "model"
		if m.Role == types.RoleUser {
			role = "user"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	return geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     rc.Temperature,
			MaxOutputTokens: rc.MaxOutputTokens,
		},
	}
}

type geminiChunk struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}
