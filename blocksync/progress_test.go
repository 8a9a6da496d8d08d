package blocksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-5 * time.Second, "0s"},
		{4 * time.Second, "4s"},
		{3*time.Minute + 4*time.Second, "3m 4s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2h 3m 4s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
		{24 * time.Hour, "1d 0h 0m 0s"},
		{time.Hour, "1h 0m 0s"},
		{1500 * time.Millisecond, "2s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatETA(tt.d), "formatETA(%s)", tt.d)
	}
}

func TestEstimateETA(t *testing.T) {
	assert.Equal(t, "", estimateETA(0, time.Second))
	assert.Equal(t, "", estimateETA(-5, time.Second))
	assert.Equal(t, "", estimateETA(500, 0))

	// 250 remaining at 100 per chunk is 3 chunks
	assert.Equal(t, "6s", estimateETA(250, 2*time.Second))
	assert.Equal(t, "2s", estimateETA(1, 2*time.Second))
}

func TestChunkAverager(t *testing.T) {
	var a chunkAverager
	assert.Equal(t, time.Duration(0), a.average())

	a.add(2 * time.Second)
	a.add(4 * time.Second)
	assert.Equal(t, 3*time.Second, a.average())
}
