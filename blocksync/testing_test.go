package blocksync

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, runMigrations(db))
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestDB(t))
}

// newTestEngine builds an engine pointed at a fake PDS, skipping the real
// session handshake.
func newTestEngine(t *testing.T, pdsHost string) *Engine {
	t.Helper()

	db := newTestDB(t)
	rl := NewRateLimiter()
	h := &http.Client{Transport: rl.Transport(nil)}
	clock := syntax.NewTIDClock(0)

	return &Engine{
		h: h,
		x: &xrpc.Client{
			Host:   pdsHost,
			Client: h,
			Auth: &xrpc.AuthInfo{
				AccessJwt:  "test-jwt",
				RefreshJwt: "test-refresh",
				Handle:     "mod.test",
				Did:        "did:plc:moderator",
			},
		},
		db:     db,
		store:  NewStore(db),
		rl:     rl,
		bus:    newEventBus(),
		clock:  &clock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// eventRecorder captures emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(g *Engine) *eventRecorder {
	r := &eventRecorder{}
	g.Subscribe(func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) ofType(name string) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.EventType() == name {
			out = append(out, ev)
		}
	}
	return out
}
