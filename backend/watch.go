package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WatchTask subscribes to a task's progress WebSocket. Each event is a full
// task snapshot. The returned channel is closed when the task reaches a
// terminal status, the backend closes the stream, or ctx is canceled.
func (c *Client) WatchTask(ctx context.Context, id string) (<-chan Task, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws/tasks/" + id

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	// The retrying client is not suitable for a WebSocket upgrade.
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: &http.Client{},
	})
	if err != nil {
		return nil, fmt.Errorf("dialing task WebSocket: %w", err)
	}

	events := make(chan Task)
	go func() {
		defer close(events)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			var t Task
			if err := wsjson.Read(ctx, conn, &t); err != nil {
				if ctx.Err() == nil {
					c.Logger.Debugf("task %s WebSocket closed: %s", id, err)
				}
				return
			}
			select {
			case events <- t:
			case <-ctx.Done():
				return
			}
			if t.Done() {
				return
			}
		}
	}()
	return events, nil
}
