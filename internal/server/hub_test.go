package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchsync/sketchsync/internal/store"
)

func newTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(nil)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Subscribe(w, r, "doc")
	}))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(ts.URL, "http", "ws", 1), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// The handler registers after the handshake; wait for it.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.docs["doc"]) == 1
	}, 2*time.Second, 5*time.Millisecond)
	return hub, conn
}

// Appends and the notifier subscription broadcast from independent
// goroutines; every frame must still arrive intact on one socket.
func TestHub_ConcurrentBroadcastsToOneSubscriber(t *testing.T) {
	hub, conn := newTestHub(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(pos int64) {
			defer wg.Done()
			hub.Broadcast("doc", pos)
		}(int64(i))
	}

	got := make(map[int64]struct{}, n)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for i := 0; i < n; i++ {
		var ev store.PushEvent
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, "doc", ev.DocumentID)
		got[ev.Position] = struct{}{}
	}
	wg.Wait()
	assert.Len(t, got, n)
}

func TestHub_DropsClosedSubscriber(t *testing.T) {
	hub, conn := newTestHub(t)

	hub.Broadcast("doc", 1)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev store.PushEvent
	require.NoError(t, conn.ReadJSON(&ev))

	require.NoError(t, conn.Close())

	// The drained read loop unregisters the socket; broadcasting to a
	// document with no live subscribers must be a no-op.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.docs["doc"]) == 0
	}, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast("doc", 2)
}
