// Package rest implements the historical-fetch side of the engine: a
// small HTTP client for the paginated messages endpoint, usable as a
// roomlog.HistoryFetcher.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/roomlog/roomlog-go/roomlog"
)

// Client provides access to the message history API.
type Client struct {
	baseURL    string
	token      roomlog.TokenProvider
	httpClient *http.Client
}

// NewClient creates a history client. baseURL is the base URL of the
// API, e.g. "http://localhost:8080/api".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetTokenProvider attaches bearer auth to every request.
func (c *Client) SetTokenProvider(tp roomlog.TokenProvider) {
	c.token = tp
}

// GetMessages retrieves one history page for a room. page starts at 1;
// before, when non-empty, requests only messages older than that id.
// An empty message list means the history is exhausted.
func (c *Client) GetMessages(ctx context.Context, roomID string, page int, before string) (*MessagesResponse, error) {
	path := fmt.Sprintf("/rooms/%s/messages?page=%d", url.PathEscape(roomID), page)
	if before != "" {
		path += "&before=" + url.QueryEscape(before)
	}

	var resp MessagesResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMessages implements roomlog.HistoryFetcher.
func (c *Client) FetchMessages(ctx context.Context, roomID string, page int, beforeID string) (roomlog.HistoryPage, error) {
	resp, err := c.GetMessages(ctx, roomID, page, beforeID)
	if err != nil {
		return roomlog.HistoryPage{}, err
	}

	out := roomlog.HistoryPage{
		Messages: make([]roomlog.Message, 0, len(resp.ChatRoomDetail.Messages)),
		Members:  make([]roomlog.Member, 0, len(resp.ChatRoomDetail.Members)),
	}
	for _, m := range resp.ChatRoomDetail.Messages {
		out.Messages = append(out.Messages, roomlog.Message{
			ID:         m.ID,
			Content:    m.Content,
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			CreatedAt:  m.CreatedAt,
		})
	}
	for _, m := range resp.ChatRoomDetail.Members {
		out.Members = append(out.Members, roomlog.Member{ID: m.ID, Name: m.Name})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if c.token != nil {
		if t, ok := c.token(); ok && t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("api error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("http error: %s (status %d)", string(body), resp.StatusCode)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
