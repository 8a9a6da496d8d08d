package blocksync

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// fakeMember is a synthetic list member, oldest-first in fakePDS.lists.
type fakeMember struct {
	handle string
	did    string
}

func makeMembers(n int) []fakeMember {
	members := make([]fakeMember, n)
	for i := range members {
		members[i] = fakeMember{
			handle: fmt.Sprintf("member-%03d.test", i),
			did:    fmt.Sprintf("did:plc:member%03d", i),
		}
	}
	return members
}

// fakePDS is an httptest server speaking just enough xrpc for the engine:
// getList pagination with numeric offset cursors, createRecord, deleteRecord,
// resolveHandle, and createReport.
type fakePDS struct {
	t *testing.T

	mu     sync.Mutex
	lists  map[string][]fakeMember
	totals map[string]int64 // advertised listItemCount, defaults to len(list)

	getListCalls    int
	createCalls     int
	deleteCalls     int
	reportCalls     int
	failGetList     int // fail this many upcoming getList calls with 500
	getListStatus   int // non-zero: answer every getList with this status
	createStatus    int // non-zero: answer createRecord with this status
	deleteStatus    int // non-zero: answer deleteRecord with this status
	deleteNotFound  bool
	beforeChunk     func(listUri, cursor string)
	srv             *httptest.Server
}

func newFakePDS(t *testing.T) *fakePDS {
	p := &fakePDS{
		t:      t,
		lists:  map[string][]fakeMember{},
		totals: map[string]int64{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/app.bsky.graph.getList", p.handleGetList)
	mux.HandleFunc("/xrpc/com.atproto.repo.createRecord", p.handleCreateRecord)
	mux.HandleFunc("/xrpc/com.atproto.repo.deleteRecord", p.handleDeleteRecord)
	mux.HandleFunc("/xrpc/com.atproto.identity.resolveHandle", p.handleResolveHandle)
	mux.HandleFunc("/xrpc/com.atproto.moderation.createReport", p.handleCreateReport)

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePDS) setList(listUri string, members []fakeMember) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists[listUri] = members
	p.totals[listUri] = int64(len(members))
}

func xrpcError(w http.ResponseWriter, status int, errStr, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": errStr, "message": msg})
}

func (p *fakePDS) handleGetList(w http.ResponseWriter, r *http.Request) {
	listUri := r.URL.Query().Get("list")
	cursor := r.URL.Query().Get("cursor")

	p.mu.Lock()
	hook := p.beforeChunk
	p.mu.Unlock()
	if hook != nil {
		hook(listUri, cursor)
	}

	p.mu.Lock()
	p.getListCalls++
	if p.getListStatus != 0 {
		status := p.getListStatus
		p.mu.Unlock()
		xrpcError(w, status, "AuthenticationRequired", "invalid session")
		return
	}
	if p.failGetList > 0 {
		p.failGetList--
		p.mu.Unlock()
		xrpcError(w, http.StatusInternalServerError, "InternalServerError", "oops")
		return
	}
	members := p.lists[listUri]
	total := p.totals[listUri]
	p.mu.Unlock()

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	offset := 0
	if cursor != "" {
		offset, _ = strconv.Atoi(cursor)
	}

	end := offset + limit
	if end > len(members) {
		end = len(members)
	}
	if offset > end {
		offset = end
	}

	// newest-first within the page, mirroring the real endpoint
	items := []map[string]any{}
	for i := end - 1; i >= offset; i-- {
		m := members[i]
		items = append(items, map[string]any{
			"uri": fmt.Sprintf("at://did:plc:moderator/app.bsky.graph.listitem/rkey-%s", m.did),
			"subject": map[string]any{
				"did":    m.did,
				"handle": m.handle,
			},
		})
	}

	out := map[string]any{
		"list": map[string]any{
			"uri":           listUri,
			"name":          "test list",
			"purpose":       "app.bsky.graph.defs#modlist",
			"listItemCount": total,
		},
		"items": items,
	}
	if end < len(members) {
		out["cursor"] = strconv.Itoa(end)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (p *fakePDS) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.createCalls++
	status := p.createStatus
	p.mu.Unlock()

	if status != 0 {
		xrpcError(w, status, "InternalServerError", "create failed")
		return
	}

	var input struct {
		Rkey *string `json:"rkey"`
	}
	json.NewDecoder(r.Body).Decode(&input)
	rkey := "generated"
	if input.Rkey != nil {
		rkey = *input.Rkey
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"uri": fmt.Sprintf("at://did:plc:moderator/app.bsky.graph.listitem/%s", rkey),
		"cid": "bafyreihfakecid",
	})
}

func (p *fakePDS) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.deleteCalls++
	status := p.deleteStatus
	notFound := p.deleteNotFound
	p.mu.Unlock()

	if notFound {
		xrpcError(w, http.StatusBadRequest, "RecordNotFound", "could not locate record")
		return
	}
	if status != 0 {
		xrpcError(w, status, "InternalServerError", "delete failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("{}"))
}

func (p *fakePDS) handleResolveHandle(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("handle")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"did": "did:plc:resolved-" + handle,
	})
}

func (p *fakePDS) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.reportCalls++
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":         1,
		"reasonType": "com.atproto.moderation.defs#reasonSpam",
		"reportedBy": "did:plc:moderator",
		"createdAt":  "2026-09-01T00:00:00Z",
		"subject":    map[string]any{"$type": "com.atproto.admin.defs#repoRef", "did": "did:plc:someone"},
	})
}
