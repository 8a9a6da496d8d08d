package blocksync

import (
	"fmt"
	"time"
)

// chunkAverager keeps a moving average of per-chunk wall time (network fetch
// plus local merge) across one list walk.
type chunkAverager struct {
	total time.Duration
	n     int64
}

func (a *chunkAverager) add(d time.Duration) {
	a.total += d
	a.n++
}

func (a *chunkAverager) average() time.Duration {
	if a.n == 0 {
		return 0
	}
	return a.total / time.Duration(a.n)
}

// estimateETA projects the remaining walk time from the users still to fetch
// and the average chunk time. Returns "" when no estimate is possible.
func estimateETA(usersRemaining int64, avgChunk time.Duration) string {
	if usersRemaining <= 0 || avgChunk <= 0 {
		return ""
	}
	chunks := (usersRemaining + maxPageSize - 1) / maxPageSize
	return formatETA(time.Duration(chunks) * avgChunk)
}

// formatETA renders a duration as "1d 2h 3m 4s", dropping leading zero units
// but always keeping the final seconds unit.
func formatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)

	days := secs / 86400
	secs -= days * 86400
	hours := secs / 3600
	secs -= hours * 3600
	mins := secs / 60
	secs -= mins * 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
