package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchsync/sketchsync/internal/core/op"
	"github.com/sketchsync/sketchsync/internal/store"
)

func TestSubscribePush_DeliversAppendEvents(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan store.PushEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- store.SubscribePush(ctx, ts.URL, "doc", func(doc string, pos int64) {
			events <- store.PushEvent{DocumentID: doc, Position: pos}
		}, nil)
	}()

	// Give the subscriber time to connect before appending.
	client := store.NewHTTPStore(ts.URL)
	require.Eventually(t, func() bool {
		_, err := client.AppendOperations(ctx, "doc", "alice", []op.Operation{op.NewAdd("alice", rect("r1"))})
		if err != nil {
			return false
		}
		select {
		case ev := <-events:
			assert.Equal(t, "doc", ev.DocumentID)
			return true
		default:
			return false
		}
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop on cancel")
	}
}
