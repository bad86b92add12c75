package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/appforge/forge/internal/types"
)

// WatchJob opens the per-job WebSocket stream and delivers messages until
// the context is cancelled, the connection drops, or the server closes it.
// The returned channel is closed when the stream ends.
func (c *APIClient) WatchJob(ctx context.Context, jobID string) (<-chan types.StreamMessage, error) {
	return c.watch(ctx, "/ws/jobs/"+url.PathEscape(jobID))
}

// WatchJobs opens the aggregate job-list stream
func (c *APIClient) WatchJobs(ctx context.Context) (<-chan types.StreamMessage, error) {
	return c.watch(ctx, "/ws/jobs")
}

func (c *APIClient) watch(ctx context.Context, path string) (<-chan types.StreamMessage, error) {
	wsURL, err := websocketURL(c.baseURL, path)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	out := make(chan types.StreamMessage)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer func() { _ = conn.Close() }()
		for {
			var msg types.StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch {
	case u.Scheme == "https":
		u.Scheme = "wss"
	case u.Scheme == "http" || u.Scheme == "":
		u.Scheme = "ws"
	case strings.HasPrefix(u.Scheme, "ws"):
		// already a websocket scheme
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path
	return u.String(), nil
}
