// Package throttle limits the rate at which unit bytes are handed to a transport.
package throttle

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurst caps a single read so that the limiter never has to grant more
// tokens than its bucket holds.
const maxBurst = 32 * 1024

// Reader wraps an io.Reader and blocks each read until the limiter grants
// enough tokens for the bytes returned.
type Reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewReader returns r limited to bytesPerSecond. A rate of 0 or less returns r
// unchanged.
func NewReader(ctx context.Context, r io.Reader, bytesPerSecond int64) io.Reader {
	if bytesPerSecond <= 0 {
		return r
	}
	burst := int(min(bytesPerSecond, maxBurst))
	return &Reader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

func (t *Reader) Read(p []byte) (int, error) {
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
