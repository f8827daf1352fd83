package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PushEvent is what the server writes to subscribed sockets whenever a
// document's log grows.
type PushEvent struct {
	DocumentID string `json:"documentId"`
	Position   int64  `json:"position"`
}

// SubscribePush opens a WebSocket to the server's push endpoint for one
// document and invokes fn for every append notification until ctx is
// done or the connection drops. The caller decides whether to redial;
// sessions also poll, so a dropped push socket degrades latency, not
// correctness.
func SubscribePush(ctx context.Context, baseURL, documentID string, fn AppendHook, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1)
	endpoint := fmt.Sprintf("%s/v1/documents/%s/ws", wsURL, documentID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: dial push socket: %v", ErrUnavailable, err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: push socket closed: %v", ErrUnavailable, err)
		}
		var ev PushEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("dropping malformed push event", zap.Error(err))
			continue
		}
		fn(ev.DocumentID, ev.Position)
	}
}
