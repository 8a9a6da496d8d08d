package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rFoxen/BlueskyModerationExtension-sub001/control/api"
)

// Block adds the handle to the list via the daemon's mutation service.
func (c *Client) Block(ctx context.Context, userHandle, listUri string) (*api.BlockedUser, error) {
	b, err := json.Marshal(api.BlockInput{UserHandle: userHandle, ListUri: listUri})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJsonMarshal, err)
	}

	req, err := c.CreatePostRequest(ctx, "/blocks", b)
	if err != nil {
		return nil, fmt.Errorf("%w, %w", ErrRequest, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponse, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrBadStatusCode, resp.StatusCode)
	}

	var rec api.BlockedUser
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJsonUnmarshal, err)
	}

	return &rec, nil
}

func (c *Client) Unblock(ctx context.Context, userHandle, listUri string) error {
	b, err := json.Marshal(api.BlockInput{UserHandle: userHandle, ListUri: listUri})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJsonMarshal, err)
	}

	req, err := c.CreateDeleteRequest(ctx, "/blocks", b)
	if err != nil {
		return fmt.Errorf("%w, %w", ErrRequest, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResponse, err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBadStatusCode, resp.StatusCode)
	}

	return nil
}

func (c *Client) CheckBlocked(ctx context.Context, userHandle string, listUris []string) (bool, error) {
	q := url.Values{}
	q.Set("handle", userHandle)
	for _, l := range listUris {
		q.Add("list", l)
	}

	req, err := c.CreateGetRequest(ctx, "/blocks/check?"+q.Encode())
	if err != nil {
		return false, fmt.Errorf("%w, %w", ErrRequest, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrResponse, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: status %d", ErrBadStatusCode, resp.StatusCode)
	}

	var result api.CheckBlockedResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("%w: %w", ErrJsonUnmarshal, err)
	}

	return result.Blocked, nil
}

func (c *Client) Search(ctx context.Context, listUri, query string, page, pageSize int) (*api.SearchResult, error) {
	q := url.Values{}
	q.Set("list", listUri)
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	req, err := c.CreateGetRequest(ctx, "/blocks/search?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w, %w", ErrRequest, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponse, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrBadStatusCode, resp.StatusCode)
	}

	var result api.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJsonUnmarshal, err)
	}

	return &result, nil
}

func (c *Client) Report(ctx context.Context, userHandle, reasonType, reason string) error {
	b, err := json.Marshal(api.ReportInput{UserHandle: userHandle, ReasonType: reasonType, Reason: reason})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJsonMarshal, err)
	}

	req, err := c.CreatePostRequest(ctx, "/reports", b)
	if err != nil {
		return fmt.Errorf("%w, %w", ErrRequest, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResponse, err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBadStatusCode, resp.StatusCode)
	}

	return nil
}
