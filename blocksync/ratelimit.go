package blocksync

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// credit costs charged by the PDS per operation class
	costRead     = 1
	costMutation = 3

	// back off this long before the advertised window reset to avoid
	// hammering exactly at the boundary
	resetGrace = time.Second
)

// RateLimiter tracks the request budget advertised by the most recent PDS
// response's ratelimit headers. It is advisory: callers consult it and decide
// for themselves whether to wait or surface the condition.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	remaining int
	reset     time.Time
	known     bool

	now func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now}
}

// UpdateFromHeaders ingests ratelimit-limit / ratelimit-remaining /
// ratelimit-reset from a response. Responses without the headers are ignored.
func (rl *RateLimiter) UpdateFromHeaders(h http.Header) {
	remaining := h.Get("ratelimit-remaining")
	if remaining == "" {
		return
	}
	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.remaining = rem
	rl.known = true
	if lim, err := strconv.Atoi(h.Get("ratelimit-limit")); err == nil {
		rl.limit = lim
	}
	if reset, err := strconv.ParseInt(h.Get("ratelimit-reset"), 10, 64); err == nil {
		rl.reset = time.Unix(reset, 0)
	}
}

// CanMakeRequest reports whether at least cost credits remain. Before any
// headers have been seen the budget is unknown and this returns false;
// TimeUntilReset is zero in that state, so callers fall through immediately.
func (rl *RateLimiter) CanMakeRequest(cost int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if !rl.known {
		return false
	}
	return rl.remaining >= cost
}

// TimeUntilReset returns how long until the advertised window resets, minus a
// one second grace period, floored at zero.
func (rl *RateLimiter) TimeUntilReset() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.reset.IsZero() {
		return 0
	}
	d := rl.reset.Sub(rl.now()) - resetGrace
	if d < 0 {
		return 0
	}
	return d
}

// Transport wraps a RoundTripper so every PDS response feeds the limiter,
// success or failure, without the xrpc layer having to expose headers.
func (rl *RateLimiter) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &ratelimitTransport{base: base, rl: rl}
}

type ratelimitTransport struct {
	base http.RoundTripper
	rl   *RateLimiter
}

func (t *ratelimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.rl.UpdateFromHeaders(resp.Header)
	}
	return resp, err
}
