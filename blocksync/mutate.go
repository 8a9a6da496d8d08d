package blocksync

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	lexutil "github.com/bluesky-social/indigo/lex/util"
)

const listitemCollection = "app.bsky.graph.listitem"

// IsUserBlocked reports whether the handle is cached as blocked in any of the
// currently active lists. Pure cache read, never a network call: the page
// scanner needs an instant answer and accepts staleness during a sync.
func (g *Engine) IsUserBlocked(userHandle string) (bool, error) {
	return g.store.IsHandleBlocked(userHandle, g.ActiveLists())
}

// IsUserBlockedIn is IsUserBlocked against an explicit list set.
func (g *Engine) IsUserBlockedIn(userHandle string, listUris []string) (bool, error) {
	return g.store.IsHandleBlocked(userHandle, listUris)
}

func (g *Engine) SetActiveLists(listUris []string) {
	g.activeMu.Lock()
	g.activeLists = append([]string(nil), listUris...)
	g.activeMu.Unlock()
	g.bus.emit(ListSelectionEvent{ListUris: listUris})
}

func (g *Engine) ActiveLists() []string {
	g.activeMu.RLock()
	defer g.activeMu.RUnlock()
	return append([]string(nil), g.activeLists...)
}

// AddBlockedUser adds the handle to the list: an optimistic cache row with a
// pending record uri lands (and is announced) before the createRecord call,
// then is reconciled with the server's uri or rolled back on failure.
func (g *Engine) AddBlockedUser(ctx context.Context, userHandle, listUri string) error {
	userHandle = NormalizeHandle(userHandle)

	blocked, err := g.store.IsHandleBlocked(userHandle, []string{listUri})
	if err != nil {
		g.emitStoreError("checking existing block", err)
		return err
	}
	if blocked {
		g.logger.Info("user already blocked", "handle", userHandle, "list", listUri)
		g.bus.emit(NoticeEvent{Message: fmt.Sprintf("@%s is already blocked", userHandle)})
		return nil
	}

	if !g.rl.CanMakeRequest(costMutation) {
		if wait := g.rl.TimeUntilReset(); wait > 0 {
			g.bus.emit(RateLimitEvent{WaitMs: wait.Milliseconds()})
			rateLimitWaits.Inc()
			return fmt.Errorf("rate limited for %s", wait)
		}
	}

	did, err := g.resolveDid(ctx, userHandle)
	if err != nil {
		if isAuthError(err) {
			g.sessionExpired()
			return ErrSessionExpired
		}
		g.bus.emit(ErrorEvent{Message: fmt.Sprintf("could not resolve @%s: %s", userHandle, err)})
		return err
	}

	maxPos, err := g.store.GetMaxPosition(listUri)
	if err != nil {
		g.emitStoreError("computing position", err)
		return err
	}

	rec := ListMembership{
		ID:         MembershipID(listUri, userHandle),
		ListUri:    listUri,
		UserHandle: userHandle,
		Did:        did,
		RecordUri:  RecordUriPending,
		Position:   maxPos + 1,
	}
	if err := g.store.AddOrUpdate(rec); err != nil {
		g.emitStoreError("writing optimistic block", err)
		return err
	}
	g.bus.emit(UserAddedEvent{Record: rec, Provisional: true})

	out, err := g.createListitem(ctx, listUri, did)
	if err != nil {
		// roll the optimistic row back so the cache never diverges from the
		// server for longer than the failed call
		if rerr := g.store.Remove(listUri, userHandle); rerr != nil {
			g.emitStoreError("rolling back optimistic block", rerr)
		}
		g.bus.emit(UserRemovedEvent{ListUri: listUri, UserHandle: userHandle})
		if isAuthError(err) {
			g.sessionExpired()
			return ErrSessionExpired
		}
		g.logger.Error("block create failed", "handle", userHandle, "list", listUri, "error", err)
		g.bus.emit(ErrorEvent{Message: fmt.Sprintf("failed to block @%s: %s", userHandle, err)})
		return err
	}

	usersBlocked.Inc()
	return g.addBlockedUserFromResponse(listUri, userHandle, did, out.Uri)
}

// addBlockedUserFromResponse reconciles a server-confirmed membership with the
// cache. An existing row (the optimistic one, or one a concurrent sync chunk
// merged in the interim) keeps its position and only gains the record uri; a
// missing row is inserted fresh at the next position.
func (g *Engine) addBlockedUserFromResponse(listUri, userHandle, did, recordUri string) error {
	existing, err := g.store.GetByHandle(listUri, userHandle)
	if err != nil {
		g.emitStoreError("reading cached block", err)
		return err
	}

	if existing != nil {
		existing.Did = did
		existing.RecordUri = recordUri
		if err := g.store.AddOrUpdate(*existing); err != nil {
			g.emitStoreError("confirming block", err)
			return err
		}
		g.logger.Info("confirmed blocked user", "handle", userHandle, "list", listUri, "record", recordUri)
		g.bus.emit(UserUpdatedEvent{Record: *existing})
		return nil
	}

	maxPos, err := g.store.GetMaxPosition(listUri)
	if err != nil {
		g.emitStoreError("computing position", err)
		return err
	}
	rec := ListMembership{
		ID:         MembershipID(listUri, userHandle),
		ListUri:    listUri,
		UserHandle: userHandle,
		Did:        did,
		RecordUri:  recordUri,
		Position:   maxPos + 1,
	}
	if err := g.store.AddOrUpdate(rec); err != nil {
		g.emitStoreError("confirming block", err)
		return err
	}
	g.bus.emit(UserAddedEvent{Record: rec})
	return nil
}

// RemoveBlockedUser deletes the membership record remotely and drops the
// cached row. A record already gone server-side is treated as success: local
// and remote already agree on the end state.
func (g *Engine) RemoveBlockedUser(ctx context.Context, userHandle, listUri string) error {
	userHandle = NormalizeHandle(userHandle)

	rec, err := g.store.GetByHandle(listUri, userHandle)
	if err != nil {
		g.emitStoreError("reading cached block", err)
		return err
	}
	if rec == nil {
		g.bus.emit(NoticeEvent{Message: fmt.Sprintf("@%s is not on this list", userHandle)})
		return nil
	}

	if rec.RecordUri != RecordUriPending {
		if !g.rl.CanMakeRequest(costMutation) {
			if wait := g.rl.TimeUntilReset(); wait > 0 {
				g.bus.emit(RateLimitEvent{WaitMs: wait.Milliseconds()})
				rateLimitWaits.Inc()
				return fmt.Errorf("rate limited for %s", wait)
			}
		}

		_, err := atproto.RepoDeleteRecord(ctx, g.GetClient(), &atproto.RepoDeleteRecord_Input{
			Collection: listitemCollection,
			Repo:       g.RepoDid(),
			Rkey:       recordRkey(rec.RecordUri),
		})
		if err != nil && !isRecordNotFound(err) {
			if isAuthError(err) {
				g.sessionExpired()
				return ErrSessionExpired
			}
			g.logger.Error("unblock failed", "handle", userHandle, "list", listUri, "error", err)
			g.bus.emit(ErrorEvent{Message: fmt.Sprintf("failed to unblock @%s: %s", userHandle, err)})
			return err
		}
		if err != nil {
			g.logger.Info("membership record already gone, removing locally", "handle", userHandle, "list", listUri)
		}
	}

	if err := g.store.Remove(listUri, userHandle); err != nil {
		g.emitStoreError("removing cached block", err)
		return err
	}
	usersUnblocked.Inc()
	g.bus.emit(UserRemovedEvent{ListUri: listUri, UserHandle: userHandle})
	return nil
}

func (g *Engine) createListitem(ctx context.Context, listUri, did string) (*atproto.RepoCreateRecord_Output, error) {
	rkey := g.clock.Next().String()
	return atproto.RepoCreateRecord(ctx, g.GetClient(), &atproto.RepoCreateRecord_Input{
		Collection: listitemCollection,
		Repo:       g.RepoDid(),
		Rkey:       &rkey,
		Record: &lexutil.LexiconTypeDecoder{Val: &bsky.GraphListitem{
			CreatedAt: syntax.DatetimeNow().String(),
			List:      listUri,
			Subject:   did,
		}},
	})
}

// resolveDid resolves a handle to its did, passing dids straight through.
func (g *Engine) resolveDid(ctx context.Context, handleOrDid string) (string, error) {
	if strings.HasPrefix(handleOrDid, "did:") {
		return handleOrDid, nil
	}
	out, err := atproto.IdentityResolveHandle(ctx, g.GetClient(), NormalizeHandle(handleOrDid))
	if err != nil {
		return "", fmt.Errorf("resolving handle %s: %w", handleOrDid, err)
	}
	return out.Did, nil
}

// ResolveHandle resolves a did back to its current handle.
func (g *Engine) ResolveHandle(ctx context.Context, did string) (string, error) {
	profile, err := bsky.ActorGetProfile(ctx, g.GetClient(), did)
	if err != nil {
		return "", fmt.Errorf("resolving did %s: %w", did, err)
	}
	return profile.Handle, nil
}
