package blocksync

import "sync"

// Event is a typed notification emitted by the engine. The EventType string is
// the stable name the extension front end subscribes on over the websocket.
type Event interface {
	EventType() string
}

// ProgressEvent is emitted after every merged chunk during a list walk.
type ProgressEvent struct {
	ListUri     string `json:"listUri"`
	Count       int64  `json:"count"`
	Removed     int64  `json:"removedCount"`
	RemoteTotal int64  `json:"remoteTotal"`
	ETA         string `json:"eta,omitempty"`
}

func (ProgressEvent) EventType() string { return "blockedUsersProgress" }

// LoadedEvent signals a completed initial or resumed load.
type LoadedEvent struct {
	ListUri string `json:"listUri"`
	Count   int64  `json:"count"`
}

func (LoadedEvent) EventType() string { return "blockedUsersLoaded" }

// RefreshedEvent signals a completed explicit refresh walk.
type RefreshedEvent struct {
	ListUri string `json:"listUri"`
	Count   int64  `json:"count"`
}

func (RefreshedEvent) EventType() string { return "blockedUsersRefreshed" }

// AlreadyLoadedEvent signals a load request for a list whose walk previously
// completed; no network call was made.
type AlreadyLoadedEvent struct {
	ListUri string `json:"listUri"`
}

func (AlreadyLoadedEvent) EventType() string { return "blockedUsersAlreadyLoaded" }

// UserAddedEvent carries a newly cached membership row. Provisional rows have
// not yet been confirmed by the server and still carry the pending record uri.
type UserAddedEvent struct {
	Record      ListMembership `json:"record"`
	Provisional bool           `json:"provisional"`
}

func (UserAddedEvent) EventType() string { return "blockedUserAdded" }

// UserUpdatedEvent carries a row whose record uri was reconciled with the
// server's response.
type UserUpdatedEvent struct {
	Record ListMembership `json:"record"`
}

func (UserUpdatedEvent) EventType() string { return "blockedUserUpdated" }

type UserRemovedEvent struct {
	ListUri    string `json:"listUri"`
	UserHandle string `json:"userHandle"`
}

func (UserRemovedEvent) EventType() string { return "blockedUserRemoved" }

type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return "error" }

type NoticeEvent struct {
	Message string `json:"message"`
}

func (NoticeEvent) EventType() string { return "notice" }

// RateLimitEvent tells the caller how long to wait before the budget resets.
type RateLimitEvent struct {
	WaitMs int64 `json:"waitTimeMs"`
}

func (RateLimitEvent) EventType() string { return "rateLimitExceeded" }

// SessionExpiredEvent is emitted on a 401 from the PDS; the current sync or
// mutation stops and the user has to re-authenticate.
type SessionExpiredEvent struct{}

func (SessionExpiredEvent) EventType() string { return "sessionExpired" }

// ListSelectionEvent is emitted when the set of active lists changes.
type ListSelectionEvent struct {
	ListUris []string `json:"listUris"`
}

func (ListSelectionEvent) EventType() string { return "listSelectionChanged" }

type eventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func newEventBus() *eventBus {
	return &eventBus{subs: map[int]func(Event){}}
}

func (b *eventBus) subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *eventBus) emit(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
