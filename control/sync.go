package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rFoxen/BlueskyModerationExtension-sub001/control/api"
)

// LoadList asks the daemon to walk the list into its cache, resuming from the
// last durable cursor. The walk runs in the background; progress arrives on
// the event stream.
func (c *Client) LoadList(ctx context.Context, listUri string) error {
	return c.postList(ctx, "/lists/load", listUri)
}

// RefreshList asks the daemon to purge and re-walk the list from scratch.
func (c *Client) RefreshList(ctx context.Context, listUri string) error {
	return c.postList(ctx, "/lists/refresh", listUri)
}

func (c *Client) postList(ctx context.Context, endpoint, listUri string) error {
	b, err := json.Marshal(api.LoadListInput{ListUri: listUri})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJsonMarshal, err)
	}

	req, err := c.CreatePostRequest(ctx, endpoint, b)
	if err != nil {
		return fmt.Errorf("%w, %w", ErrRequest, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResponse, err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: status %d", ErrBadStatusCode, resp.StatusCode)
	}

	return nil
}

func (c *Client) CancelSync(ctx context.Context) error {
	req, err := c.CreatePostRequest(ctx, "/lists/cancel", nil)
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

func (c *Client) SelectLists(ctx context.Context, listUris []string) error {
	b, err := json.Marshal(api.SelectListsInput{ListUris: listUris})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJsonMarshal, err)
	}

	req, err := c.CreatePostRequest(ctx, "/lists/select", b)
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

func (c *Client) ListStatus(ctx context.Context, listUri string) (*api.ListStatus, error) {
	req, err := c.CreateGetRequest(ctx, "/lists/status?list="+url.QueryEscape(listUri))
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

	var status api.ListStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJsonUnmarshal, err)
	}

	return &status, nil
}
