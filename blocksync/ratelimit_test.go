package blocksync

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterUnknownBudget(t *testing.T) {
	rl := NewRateLimiter()

	assert.False(t, rl.CanMakeRequest(costRead), "unknown budget blocks")
	assert.Equal(t, time.Duration(0), rl.TimeUntilReset(), "but with nothing to wait for")
}

func TestRateLimiterHeaderIngestion(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }

	h := http.Header{}
	h.Set("ratelimit-limit", "3000")
	h.Set("ratelimit-remaining", "10")
	h.Set("ratelimit-reset", strconv.FormatInt(now.Add(30*time.Second).Unix(), 10))
	rl.UpdateFromHeaders(h)

	assert.True(t, rl.CanMakeRequest(costMutation))
	assert.True(t, rl.CanMakeRequest(costRead))

	h.Set("ratelimit-remaining", "2")
	rl.UpdateFromHeaders(h)
	assert.False(t, rl.CanMakeRequest(costMutation), "below mutation cost")
	assert.True(t, rl.CanMakeRequest(costRead))

	wait := rl.TimeUntilReset()
	assert.InDelta(t, float64(29*time.Second), float64(wait), float64(time.Second), "reset minus the grace period")
}

func TestRateLimiterResetGraceFloor(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }

	h := http.Header{}
	h.Set("ratelimit-remaining", "0")
	h.Set("ratelimit-reset", strconv.FormatInt(now.Add(500*time.Millisecond).Unix(), 10))
	rl.UpdateFromHeaders(h)

	assert.Equal(t, time.Duration(0), rl.TimeUntilReset(), "never negative")
}

func TestRateLimiterIgnoresResponsesWithoutHeaders(t *testing.T) {
	rl := NewRateLimiter()

	h := http.Header{}
	h.Set("ratelimit-remaining", "50")
	rl.UpdateFromHeaders(h)
	require.True(t, rl.CanMakeRequest(costMutation))

	rl.UpdateFromHeaders(http.Header{})
	assert.True(t, rl.CanMakeRequest(costMutation), "headerless response leaves state alone")
}

func TestRateLimitTransportCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ratelimit-limit", "3000")
		w.Header().Set("ratelimit-remaining", "1")
		w.Header().Set("ratelimit-reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rl := NewRateLimiter()
	client := &http.Client{Transport: rl.Transport(nil)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.True(t, rl.CanMakeRequest(costRead))
	assert.False(t, rl.CanMakeRequest(costMutation))
}
