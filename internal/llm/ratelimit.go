package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonathan/guideline-extractor/internal/types"
)

// RateLimited wraps a VisionClient with a shared token bucket
type RateLimited struct {
	next    VisionClient
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with the given burst (minimum 1).
// A non-positive perMinute disables the limit.
func NewRateLimited(next VisionClient, perMinute, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Extract waits for a token and then delegates. A cancelled wait is a transport failure.
func (r *RateLimited) Extract(ctx context.Context, prompt string, image []byte, mimeType string) (string, types.Usage, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", types.Usage{}, &TransportError{Provider: "ratelimit", Message: "rate limit wait aborted", Cause: err}
	}
	return r.next.Extract(ctx, prompt, image, mimeType)
}

// Close closes the wrapped client
func (r *RateLimited) Close() error {
	return r.next.Close()
}
