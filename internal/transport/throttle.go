// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package transport

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize bounds how much a single read can draw from the limiter's
// bucket in one shot.
const maxBurstSize = 256 * 1024

// ThrottledReader wraps an io.Reader with token-bucket rate limiting, so a
// caller can cap how fast it drains the snapshot or command stream — a
// slow-consuming embedder can bound its own memory growth this way instead
// of relying on the primary's write buffer.
type ThrottledReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// NewThrottledReader returns a reader limited to bytesPerSec bytes/second.
// If bytesPerSec <= 0, it returns r unchanged (bypass).
func NewThrottledReader(ctx context.Context, r io.Reader, bytesPerSec int64) io.Reader {
	if bytesPerSec <= 0 {
		return r
	}

	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}

	return &ThrottledReader{
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Read implements io.Reader, only returning as many bytes as the rate
// limiter currently allows.
func (tr *ThrottledReader) Read(p []byte) (int, error) {
	if len(p) > tr.limiter.Burst() {
		p = p[:tr.limiter.Burst()]
	}
	if err := tr.limiter.WaitN(tr.ctx, len(p)); err != nil {
		return 0, err
	}
	return tr.r.Read(p)
}
