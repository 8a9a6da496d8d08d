package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Export pulls the daemon's full cache as raw backup JSON.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	req, err := c.CreateGetRequest(ctx, "/backup")
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

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponse, err)
	}

	return b, nil
}

// Import replaces the daemon's cache with the given backup JSON.
func (c *Client) Import(ctx context.Context, backup []byte) error {
	if !json.Valid(backup) {
		return fmt.Errorf("%w: backup is not valid JSON", ErrJsonMarshal)
	}

	req, err := c.CreatePostRequest(ctx, "/backup", backup)
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
