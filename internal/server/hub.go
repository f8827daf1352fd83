package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sketchsync/sketchsync/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// A stalled peer must fail fast so Broadcast can drop it.
const pushWriteTimeout = 5 * time.Second

// subscriber serializes writes to one socket. Appends and the notifier
// subscription broadcast concurrently, and the websocket allows only
// one concurrent writer per connection.
type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) send(ev store.PushEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
	return s.conn.WriteJSON(ev)
}

// Hub tracks push subscribers per document and broadcasts new log
// positions to them. A slow or dead socket is dropped rather than
// allowed to block the append path; subscribers also poll, so a
// dropped socket costs latency, not edits.
type Hub struct {
	mu   sync.Mutex
	docs map[string]map[*subscriber]struct{}
	log  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{docs: make(map[string]map[*subscriber]struct{}), log: logger}
}

// Subscribe upgrades the request and registers the socket for one
// document until the peer closes it.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, documentID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	if h.docs[documentID] == nil {
		h.docs[documentID] = make(map[*subscriber]struct{})
	}
	h.docs[documentID][sub] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("push subscriber connected", zap.String("document", documentID))

	// Drain the socket; exit unregisters on close or error.
	go func() {
		defer h.drop(documentID, sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast notifies every subscriber of the document about a new last
// position. Writes to each socket are serialized and bounded by the
// write deadline; a socket that errors or stalls is dropped.
func (h *Hub) Broadcast(documentID string, position int64) {
	ev := store.PushEvent{DocumentID: documentID, Position: position}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.docs[documentID]))
	for s := range h.docs[documentID] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.send(ev); err != nil {
			h.drop(documentID, s)
		}
	}
}

// Close tears down every subscriber socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for doc, subs := range h.docs {
		for s := range subs {
			_ = s.conn.Close()
		}
		delete(h.docs, doc)
	}
}

func (h *Hub) drop(documentID string, sub *subscriber) {
	h.mu.Lock()
	if subs := h.docs[documentID]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.docs, documentID)
		}
	}
	h.mu.Unlock()
	_ = sub.conn.Close()
}
