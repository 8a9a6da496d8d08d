package blocksync

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBlockedUserSuccess(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)
	rec := recordEvents(g)

	require.NoError(t, g.AddBlockedUser(context.Background(), "@Alice.Test", listA))

	row, err := g.store.GetByHandle(listA, "alice.test")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "did:plc:resolved-alice.test", row.Did)
	assert.Equal(t, int64(0), row.Position)
	assert.NotEqual(t, RecordUriPending, row.RecordUri)
	assert.True(t, strings.HasPrefix(row.RecordUri, "at://did:plc:moderator/app.bsky.graph.listitem/"))

	added := rec.ofType("blockedUserAdded")
	require.Len(t, added, 1)
	assert.True(t, added[0].(UserAddedEvent).Provisional)
	assert.Equal(t, RecordUriPending, added[0].(UserAddedEvent).Record.RecordUri)

	updated := rec.ofType("blockedUserUpdated")
	require.Len(t, updated, 1)
	confirmed := updated[0].(UserUpdatedEvent).Record
	assert.Equal(t, row.RecordUri, confirmed.RecordUri)
	assert.Equal(t, int64(0), confirmed.Position, "reconciliation keeps the optimistic position")
}

func TestAddBlockedUserRollbackOnCreateFailure(t *testing.T) {
	pds := newFakePDS(t)
	pds.mu.Lock()
	pds.createStatus = 500
	pds.mu.Unlock()

	g := newTestEngine(t, pds.srv.URL)
	rec := recordEvents(g)

	require.Error(t, g.AddBlockedUser(context.Background(), "alice.test", listA))

	row, err := g.store.GetByHandle(listA, "alice.test")
	require.NoError(t, err)
	assert.Nil(t, row, "optimistic row rolled back")

	added := rec.ofType("blockedUserAdded")
	require.Len(t, added, 1)
	assert.True(t, added[0].(UserAddedEvent).Provisional)
	assert.Len(t, rec.ofType("blockedUserRemoved"), 1)
	assert.NotEmpty(t, rec.ofType("error"))
}

func TestAddBlockedUserAlreadyBlocked(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)

	require.NoError(t, g.store.AddOrUpdate(ListMembership{
		ListUri: listA, UserHandle: "alice.test", Did: "did:plc:alice", RecordUri: "at://r/l/abc", Position: 0,
	}))

	rec := recordEvents(g)
	require.NoError(t, g.AddBlockedUser(context.Background(), "alice.test", listA))

	assert.Len(t, rec.ofType("notice"), 1)
	pds.mu.Lock()
	defer pds.mu.Unlock()
	assert.Equal(t, 0, pds.createCalls)
}

func TestAddBlockedUserDidPassthrough(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)

	require.NoError(t, g.AddBlockedUser(context.Background(), "did:plc:direct", listA))

	row, err := g.store.GetByHandle(listA, "did:plc:direct")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "did:plc:direct", row.Did)
}

func TestAddBlockedUserFromResponseFreshInsert(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)
	rec := recordEvents(g)

	// no cached row for the handle, so the confirmation inserts fresh
	require.NoError(t, g.addBlockedUserFromResponse(listA, "bob.test", "did:plc:bob", "at://r/l/bob"))

	row, err := g.store.GetByHandle(listA, "bob.test")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(0), row.Position)

	added := rec.ofType("blockedUserAdded")
	require.Len(t, added, 1)
	assert.False(t, added[0].(UserAddedEvent).Provisional)
	assert.Empty(t, rec.ofType("blockedUserUpdated"))
}

func TestRemoveBlockedUser(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)

	require.NoError(t, g.store.AddOrUpdate(ListMembership{
		ListUri: listA, UserHandle: "alice.test", Did: "did:plc:alice",
		RecordUri: "at://did:plc:moderator/app.bsky.graph.listitem/abc", Position: 0,
	}))

	rec := recordEvents(g)
	require.NoError(t, g.RemoveBlockedUser(context.Background(), "alice.test", listA))

	row, err := g.store.GetByHandle(listA, "alice.test")
	require.NoError(t, err)
	assert.Nil(t, row)

	assert.Len(t, rec.ofType("blockedUserRemoved"), 1)
	pds.mu.Lock()
	defer pds.mu.Unlock()
	assert.Equal(t, 1, pds.deleteCalls)
}

func TestRemoveBlockedUserRecordAlreadyGone(t *testing.T) {
	pds := newFakePDS(t)
	pds.mu.Lock()
	pds.deleteNotFound = true
	pds.mu.Unlock()

	g := newTestEngine(t, pds.srv.URL)
	require.NoError(t, g.store.AddOrUpdate(ListMembership{
		ListUri: listA, UserHandle: "alice.test", Did: "did:plc:alice",
		RecordUri: "at://did:plc:moderator/app.bsky.graph.listitem/abc", Position: 0,
	}))

	rec := recordEvents(g)
	require.NoError(t, g.RemoveBlockedUser(context.Background(), "alice.test", listA), "a record already gone remotely is not an error")

	row, err := g.store.GetByHandle(listA, "alice.test")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Len(t, rec.ofType("blockedUserRemoved"), 1)
	assert.Empty(t, rec.ofType("error"))
}

func TestRemoveBlockedUserServerErrorKeepsRow(t *testing.T) {
	pds := newFakePDS(t)
	pds.mu.Lock()
	pds.deleteStatus = 500
	pds.mu.Unlock()

	g := newTestEngine(t, pds.srv.URL)
	require.NoError(t, g.store.AddOrUpdate(ListMembership{
		ListUri: listA, UserHandle: "alice.test", Did: "did:plc:alice",
		RecordUri: "at://did:plc:moderator/app.bsky.graph.listitem/abc", Position: 0,
	}))

	rec := recordEvents(g)
	require.Error(t, g.RemoveBlockedUser(context.Background(), "alice.test", listA))

	row, err := g.store.GetByHandle(listA, "alice.test")
	require.NoError(t, err)
	assert.NotNil(t, row, "row stays until the server confirms the delete")
	assert.NotEmpty(t, rec.ofType("error"))
	assert.Empty(t, rec.ofType("blockedUserRemoved"))
}

func TestRemoveBlockedUserPendingRowSkipsRemoteDelete(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)

	require.NoError(t, g.store.AddOrUpdate(ListMembership{
		ListUri: listA, UserHandle: "alice.test", Did: "did:plc:alice",
		RecordUri: RecordUriPending, Position: 0,
	}))

	rec := recordEvents(g)
	require.NoError(t, g.RemoveBlockedUser(context.Background(), "alice.test", listA))

	row, err := g.store.GetByHandle(listA, "alice.test")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Len(t, rec.ofType("blockedUserRemoved"), 1)
	pds.mu.Lock()
	defer pds.mu.Unlock()
	assert.Equal(t, 0, pds.deleteCalls, "a pending row was never created remotely")
}

func TestRemoveBlockedUserAbsent(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)
	rec := recordEvents(g)

	require.NoError(t, g.RemoveBlockedUser(context.Background(), "nobody.test", listA))

	assert.Len(t, rec.ofType("notice"), 1)
	pds.mu.Lock()
	defer pds.mu.Unlock()
	assert.Equal(t, 0, pds.deleteCalls)
}

func TestIsUserBlockedUsesActiveLists(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)

	require.NoError(t, g.store.AddOrUpdate(ListMembership{
		ListUri: listA, UserHandle: "alice.test", Did: "did:plc:alice", RecordUri: "at://r/l/abc", Position: 0,
	}))

	// no active lists selected yet
	blocked, err := g.IsUserBlocked("alice.test")
	require.NoError(t, err)
	assert.False(t, blocked)

	g.SetActiveLists([]string{listA})
	blocked, err = g.IsUserBlocked("alice.test")
	require.NoError(t, err)
	assert.True(t, blocked)

	g.SetActiveLists([]string{listB})
	blocked, err = g.IsUserBlocked("alice.test")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestReportUser(t *testing.T) {
	pds := newFakePDS(t)
	g := newTestEngine(t, pds.srv.URL)
	rec := recordEvents(g)

	require.NoError(t, g.ReportUser(context.Background(), "alice.test", ReasonSpam, "spamming replies"))

	assert.Len(t, rec.ofType("notice"), 1)
	pds.mu.Lock()
	defer pds.mu.Unlock()
	assert.Equal(t, 1, pds.reportCalls)
}
