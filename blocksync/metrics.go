package blocksync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modext_sync_chunks_merged_total",
		Help: "Number of list chunks merged into the local cache",
	})
	usersBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modext_users_blocked_total",
		Help: "Number of users blocked via the mutation service",
	})
	usersUnblocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modext_users_unblocked_total",
		Help: "Number of users unblocked via the mutation service",
	})
	rateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modext_rate_limit_waits_total",
		Help: "Number of times an operation was held for the rate limit window",
	})
)
