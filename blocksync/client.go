package blocksync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	// app.bsky.graph.getList caps limit at 100
	maxPageSize = 100

	maxFetchAttempts  = 3
	fetchRetryBackoff = 500 * time.Millisecond
)

// ErrSessionExpired is returned when the PDS answers 401. Callers must stop
// and surface a re-authentication requirement instead of retrying.
var ErrSessionExpired = errors.New("session expired, re-authentication required")

// MemberItem is one list member as returned by the list endpoint.
type MemberItem struct {
	Handle    string
	Did       string
	RecordUri string
}

// ListPage is one decoded page of list membership.
type ListPage struct {
	Items      []MemberItem
	NextCursor string
	Total      int64
	TotalKnown bool
}

// fetchListPage fetches a single page of list membership, retrying the same
// cursor up to maxFetchAttempts times on any failure. A 401 aborts retrying
// immediately. Exhausting retries is terminal for the chunk; everything
// already merged stays untouched.
func (g *Engine) fetchListPage(ctx context.Context, listUri, cursor string, limit int64) (*ListPage, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(fetchRetryBackoff):
			}
		}

		out, err := bsky.GraphGetList(ctx, g.GetClient(), cursor, limit, listUri)
		if err != nil {
			if isAuthError(err) {
				return nil, ErrSessionExpired
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			g.logger.Warn("list page fetch failed", "list", listUri, "cursor", cursor, "attempt", attempt, "error", err)
			continue
		}
		if out.List == nil {
			lastErr = fmt.Errorf("list page response missing list view")
			g.logger.Warn("malformed list page", "list", listUri, "attempt", attempt)
			continue
		}

		page := &ListPage{}
		if out.Cursor != nil {
			page.NextCursor = *out.Cursor
		}
		if out.List.ListItemCount != nil {
			page.Total = *out.List.ListItemCount
			page.TotalKnown = true
		}
		for _, item := range out.Items {
			if item == nil || item.Subject == nil {
				continue
			}
			page.Items = append(page.Items, MemberItem{
				Handle:    item.Subject.Handle,
				Did:       item.Subject.Did,
				RecordUri: item.Uri,
			})
		}
		return page, nil
	}

	return nil, fmt.Errorf("fetching list page after %d attempts: %w", maxFetchAttempts, lastErr)
}

func isAuthError(err error) bool {
	var xe *xrpc.Error
	return errors.As(err, &xe) && xe.StatusCode == http.StatusUnauthorized
}

// isRecordNotFound matches the PDS telling us a record is already gone, which
// the unblock path treats as success.
func isRecordNotFound(err error) bool {
	var xe *xrpc.Error
	if !errors.As(err, &xe) {
		return false
	}
	if xe.StatusCode == http.StatusNotFound {
		return true
	}
	var body *xrpc.XRPCError
	if errors.As(xe.Wrapped, &body) {
		if body.ErrStr == "RecordNotFound" {
			return true
		}
		msg := strings.ToLower(body.Message)
		return strings.Contains(msg, "not found") || strings.Contains(msg, "could not locate")
	}
	return false
}

// recordRkey extracts the rkey from a membership record's at-uri.
func recordRkey(recordUri string) string {
	parts := strings.Split(recordUri, "/")
	return parts[len(parts)-1]
}
