package api

import "encoding/json"

// BlockedUser is the wire shape of one cached membership row.
type BlockedUser struct {
	Id         string `json:"id"`
	ListUri    string `json:"listUri"`
	UserHandle string `json:"userHandle"`
	Did        string `json:"did"`
	RecordUri  string `json:"recordUri"`
	Position   int64  `json:"position"`
}

type LoadListInput struct {
	ListUri string `json:"listUri"`
}

type ListStatus struct {
	ListUri          string  `json:"listUri"`
	Count            int64   `json:"count"`
	ProcessedCursors int64   `json:"processedCursors"`
	NextCursor       *string `json:"nextCursor,omitempty"`
	IsComplete       bool    `json:"isComplete"`
}

type BlockInput struct {
	UserHandle string `json:"userHandle"`
	ListUri    string `json:"listUri"`
}

type CheckBlockedResult struct {
	UserHandle string `json:"userHandle"`
	Blocked    bool   `json:"blocked"`
}

type SearchResult struct {
	Users    []BlockedUser `json:"users"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

type ReportInput struct {
	UserHandle string `json:"userHandle"`
	ReasonType string `json:"reasonType"`
	Reason     string `json:"reason"`
}

type SelectListsInput struct {
	ListUris []string `json:"listUris"`
}

// EventEnvelope wraps one engine event on the websocket stream. Type carries
// the event name; Payload is the event struct's JSON.
type EventEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
