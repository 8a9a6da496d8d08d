package blocksync

import (
	"strings"

	gocid "github.com/ipfs/go-cid"
)

// RecordUriPending marks a membership row whose createRecord call is still in
// flight. It is replaced with the server's uri once the create is confirmed.
const RecordUriPending = "pending"

var idBuilder = gocid.V1Builder{Codec: 0x55, MhType: 0x12, MhLength: 0}

// ListMembership is one (list, blocked user) pair in the local cache.
type ListMembership struct {
	ID         string `gorm:"primaryKey" json:"id"`
	ListUri    string `gorm:"index;index:idx_handle_list,priority:2" json:"listUri"`
	UserHandle string `gorm:"index;index:idx_handle_list,priority:1" json:"userHandle"`
	Did        string `json:"did"`
	RecordUri  string `json:"recordUri"`
	Position   int64  `gorm:"index" json:"position"`
}

// ListSyncState tracks how far a paginated walk of a remote list has gotten,
// so an interrupted sync can resume from its last durable cursor.
type ListSyncState struct {
	ListUri          string  `gorm:"primaryKey" json:"listUri"`
	ProcessedCursors int64   `json:"processedCursors"`
	NextCursor       *string `json:"nextCursor,omitempty"`
	IsComplete       bool    `json:"isComplete"`
}

// MembershipID derives the cache primary key for a (list, handle) pair.
// Handles are case-insensitive in atproto, so the handle is lowercased first.
func MembershipID(listUri, userHandle string) string {
	c, err := idBuilder.Sum([]byte(listUri + "\x00" + strings.ToLower(userHandle)))
	if err != nil {
		// the raw codec with sha2-256 cannot fail on arbitrary bytes
		panic(err)
	}
	return c.String()
}
