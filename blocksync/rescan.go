package blocksync

// RescanRequester is the page-scanning side of the engine boundary. The DOM
// internals live in the extension; the engine only asks it to re-evaluate
// visible elements against IsUserBlocked. An empty handle means re-evaluate
// everything.
type RescanRequester interface {
	RequestRescan(userHandle string)
}

// RescanCoordinator translates cache-change and list-selection events into
// rescan requests.
type RescanCoordinator struct {
	unsubscribe func()
}

func NewRescanCoordinator(g *Engine, r RescanRequester) *RescanCoordinator {
	c := &RescanCoordinator{}
	c.unsubscribe = g.Subscribe(func(ev Event) {
		switch ev := ev.(type) {
		case UserAddedEvent:
			r.RequestRescan(ev.Record.UserHandle)
		case UserUpdatedEvent:
			r.RequestRescan(ev.Record.UserHandle)
		case UserRemovedEvent:
			r.RequestRescan(ev.UserHandle)
		case ProgressEvent, LoadedEvent, RefreshedEvent, ListSelectionEvent:
			// bulk merges and selection changes can flip any element
			r.RequestRescan("")
		}
	})
	return c
}

func (c *RescanCoordinator) Close() {
	c.unsubscribe()
}
