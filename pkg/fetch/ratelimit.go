package fetch

import (
	"bytes"
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedReader wraps an io.Reader and limits the read rate.
// A limit of 0 or negative means unlimited (no throttling).
type RateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewRateLimitedReader creates a rate-limited reader.
// limit is in bytes per second; the bucket holds one second worth of data
// and starts empty so there is no initial burst.
func NewRateLimitedReader(ctx context.Context, r io.Reader, limit int64) *RateLimitedReader {
	rl := &RateLimitedReader{ctx: ctx, r: r}
	if limit > 0 {
		rl.limiter = rate.NewLimiter(rate.Limit(limit), int(limit))
		rl.limiter.AllowN(time.Now(), int(limit))
	}
	return rl
}

// Read implements io.Reader. It blocks until enough tokens are available
// for the bytes it returns, or until the context is done.
func (r *RateLimitedReader) Read(b []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if r.limiter == nil {
		return r.r.Read(b)
	}
	if burst := r.limiter.Burst(); len(b) > burst {
		b = b[:burst]
	}
	n, err := r.r.Read(b)
	if n > 0 {
		if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// SetLimit updates the rate limit. 0 or negative means unlimited.
// It must not be called concurrently with Read.
func (r *RateLimitedReader) SetLimit(limit int64) {
	if limit <= 0 {
		r.limiter = nil
		return
	}
	if r.limiter == nil {
		r.limiter = rate.NewLimiter(rate.Limit(limit), int(limit))
		return
	}
	r.limiter.SetLimit(rate.Limit(limit))
	r.limiter.SetBurst(int(limit))
}

// readAll drains r honouring ctx and the speed limit.
func readAll(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	_, err := io.Copy(&buf, NewRateLimitedReader(ctx, r, limit))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
