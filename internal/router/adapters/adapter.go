// Package adapters streams chat completions from the local and cloud
// inference backends.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"net/url"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

// Backend streams one chat completion per range over Stream. The sequence
// is lazy: no request is sent until the caller starts ranging, and ranging
// again issues a new request. A non-nil error is always the final element.
// Breaking out of the range releases the underlying connection.
type Backend interface {
	Name() string
	Stream(ctx context.Context, systemPrompt string, messages []types.Message, cfg config.RouterConfig) iter.Seq2[string, error]
}

// Cooldown is the shared throttling state consulted by the cloud adapter.
type Cooldown interface {
	Remaining() time.Duration
	Trip(retryAfter time.Duration)
	Reset()
}

// ErrRateLimited matches every *RateLimitedError.
var ErrRateLimited = errors.New("backend rate limited")

// RateLimitedError reports that the cloud backend is cooling down.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("backend rate limited, retry in %ds", e.Seconds())
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// Seconds returns the remaining cooldown rounded up to whole seconds.
func (e *RateLimitedError) Seconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

// StatusError is returned when a backend answers with an unexpected status.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// stripURL drops the request URL from transport errors so query-string
// credentials never reach logs or users.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 1024 * 1024
	errorBodyLimit       = 512
)
