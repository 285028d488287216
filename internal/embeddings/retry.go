package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/kzidane/askbook/internal/tokens"
)

const (
	defaultMaxAttempts   = 4
	defaultBaseDelay     = 500 * time.Millisecond
	defaultMaxDelay      = 8 * time.Second
	defaultMaxInputToken = 8000
)

// RetryEmbedder decorates an Embedder with input token capping and bounded
// exponential backoff on transient upstream failures. Only rate-limit and
// timeout errors are retried; everything else propagates immediately.
type RetryEmbedder struct {
	inner       Embedder
	counter     tokens.Counter
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxTokens   int

	// sleep is swapped out in tests.
	sleep func(context.Context, time.Duration) error
}

// NewRetryEmbedder wraps the given embedder with the default retry policy
// and an input cap of 8000 tokens per text.
func NewRetryEmbedder(inner Embedder, counter tokens.Counter) *RetryEmbedder {
	return &RetryEmbedder{
		inner:       inner,
		counter:     counter,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		maxTokens:   defaultMaxInputToken,
		sleep:       sleepCtx,
	}
}

func (r *RetryEmbedder) Name() string    { return r.inner.Name() }
func (r *RetryEmbedder) Dimensions() int { return r.inner.Dimensions() }

func (r *RetryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	capped := make([]string, len(texts))
	for i, t := range texts {
		capped[i] = r.capText(t)
	}

	var lastErr error
	delay := r.baseDelay
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.inner.Embed(ctx, capped)
		if err == nil {
			return result, nil
		}
		if !retriable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == r.maxAttempts {
			break
		}
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// capText truncates the text so its estimated token count stays under the
// cap. Truncation happens on a word boundary to avoid splitting mid-token.
func (r *RetryEmbedder) capText(text string) string {
	if r.counter.Count(text) <= r.maxTokens {
		return text
	}

	words := strings.Fields(text)
	// Binary search for the longest prefix under the cap.
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if r.counter.Count(strings.Join(words[:mid], " ")) <= r.maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.Join(words[:lo], " ")
}

// retriable reports whether the error represents a transient condition.
func retriable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
