package blocksync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// syncHandle is the cancellation token for one list walk. Only one walk is
// active engine-wide; starting a new one cancels the previous handle, which
// the old walk observes cooperatively at its next chunk boundary.
type syncHandle struct {
	listUri string
	ctx     context.Context
	cancel  context.CancelFunc
}

func (g *Engine) beginSync(ctx context.Context, listUri string) *syncHandle {
	g.syncMu.Lock()
	defer g.syncMu.Unlock()
	if g.activeSync != nil {
		g.activeSync.cancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	h := &syncHandle{listUri: listUri, ctx: sctx, cancel: cancel}
	g.activeSync = h
	return h
}

func (g *Engine) finishSync(h *syncHandle) {
	g.syncMu.Lock()
	defer g.syncMu.Unlock()
	h.cancel()
	if g.activeSync == h {
		g.activeSync = nil
	}
}

// CancelSync cancels the active walk, if any. The walk's in-flight fetch is
// allowed to finish but its result is discarded before any cache write.
func (g *Engine) CancelSync() {
	g.syncMu.Lock()
	defer g.syncMu.Unlock()
	if g.activeSync != nil {
		g.activeSync.cancel()
		g.activeSync = nil
	}
}

// LoadBlockedUsers walks the remote list into the cache, resuming from the
// last durable cursor. A list whose walk already completed is not re-fetched.
func (g *Engine) LoadBlockedUsers(ctx context.Context, listUri string) error {
	state, err := g.store.GetSyncState(listUri)
	if err != nil {
		g.emitStoreError("reading sync state", err)
		return err
	}
	if state.IsComplete {
		g.logger.Info("blocked users already loaded", "list", listUri)
		g.bus.emit(AlreadyLoadedEvent{ListUri: listUri})
		return nil
	}

	h := g.beginSync(ctx, listUri)
	return g.runSync(h, state, false)
}

// RefreshBlockedUsers purges the list's cached rows and sync state, then
// re-walks the remote list from scratch.
func (g *Engine) RefreshBlockedUsers(ctx context.Context, listUri string) error {
	h := g.beginSync(ctx, listUri)
	if err := g.store.ClearList(listUri); err != nil {
		g.finishSync(h)
		g.emitStoreError("clearing list before refresh", err)
		return err
	}
	return g.runSync(h, ListSyncState{ListUri: listUri}, true)
}

func (g *Engine) runSync(h *syncHandle, state ListSyncState, refresh bool) error {
	defer g.finishSync(h)

	listUri := h.listUri
	var (
		avg         chunkAverager
		removed     int64
		remoteTotal int64
		totalKnown  bool
	)

	cursor := ""
	if state.NextCursor != nil {
		cursor = *state.NextCursor
	}

	g.logger.Info("starting blocked users sync",
		"list", listUri, "refresh", refresh, "resume-cursor", cursor, "processed-cursors", state.ProcessedCursors)

	for {
		if h.ctx.Err() != nil {
			return nil
		}

		if !g.rl.CanMakeRequest(costRead) {
			if wait := g.rl.TimeUntilReset(); wait > 0 {
				g.logger.Warn("rate limited, waiting for reset", "list", listUri, "wait", wait)
				g.bus.emit(RateLimitEvent{WaitMs: wait.Milliseconds()})
				rateLimitWaits.Inc()
				select {
				case <-h.ctx.Done():
					return nil
				case <-time.After(wait):
				}
			}
		}

		start := time.Now()
		page, err := g.fetchListPage(h.ctx, listUri, cursor, maxPageSize)
		if err != nil {
			if h.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrSessionExpired) {
				g.sessionExpired()
				return err
			}
			g.logger.Error("sync chunk failed, keeping partial progress", "list", listUri, "error", err)
			g.bus.emit(ErrorEvent{Message: fmt.Sprintf("failed to load blocked users: %s", err)})
			return err
		}

		// cancellation observed after the fetch: discard the chunk unwritten
		if h.ctx.Err() != nil {
			return nil
		}

		if page.TotalKnown {
			remoteTotal = page.Total
			totalKnown = true
		}

		before, err := g.store.CountByList(listUri)
		if err != nil {
			g.emitStoreError("counting cached rows", err)
			return err
		}

		// A chunk shorter than expected means members were removed remotely
		// since the total was taken; account for them so progress stays
		// accurate while the list shrinks under us.
		if totalKnown {
			expected := remoteTotal - before - removed
			if expected > maxPageSize {
				expected = maxPageSize
			}
			if expected < 0 {
				expected = 0
			}
			if short := expected - int64(len(page.Items)); short > 0 {
				removed += short
			}
		}

		state.ProcessedCursors++
		if page.NextCursor != "" {
			nc := page.NextCursor
			state.NextCursor = &nc
			state.IsComplete = false
		} else {
			state.NextCursor = nil
			state.IsComplete = true
		}

		if err := g.store.MergeChunk(listUri, page.Items, state); err != nil {
			g.emitStoreError("merging chunk", err)
			return err
		}
		chunksMerged.Inc()
		avg.add(time.Since(start))

		localCount, err := g.store.CountByList(listUri)
		if err != nil {
			g.emitStoreError("counting cached rows", err)
			return err
		}

		reportedTotal := remoteTotal
		var eta string
		if totalKnown {
			eta = estimateETA(remoteTotal-localCount-removed, avg.average())
		} else {
			reportedTotal = localCount
		}
		g.bus.emit(ProgressEvent{
			ListUri:     listUri,
			Count:       localCount,
			Removed:     removed,
			RemoteTotal: reportedTotal,
			ETA:         eta,
		})

		if state.IsComplete {
			g.logger.Info("blocked users sync complete",
				"list", listUri, "count", localCount, "removed", removed, "chunks", state.ProcessedCursors)
			if refresh {
				g.bus.emit(RefreshedEvent{ListUri: listUri, Count: localCount})
			} else {
				g.bus.emit(LoadedEvent{ListUri: listUri, Count: localCount})
			}
			return nil
		}

		cursor = page.NextCursor
	}
}
