package store

import (
	"context"
	"sync"

	"github.com/sketchsync/sketchsync/internal/core/op"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process log backend. It backs single-node
// deployments and every engine test.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*docLog
	hook AppendHook
}

type docLog struct {
	records []Record
	seen    map[string]struct{}
	nextPos int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*docLog)}
}

// OnAppend registers a hook invoked after each append that stored at
// least one new entry.
func (m *MemoryStore) OnAppend(hook AppendHook) {
	m.mu.Lock()
	m.hook = hook
	m.mu.Unlock()
}

func (m *MemoryStore) AppendOperations(_ context.Context, documentID, clientID string, batch []op.Operation) (AppendResult, error) {
	if documentID == "" {
		return AppendResult{}, ErrEmptyDocumentID
	}

	m.mu.Lock()
	doc := m.docs[documentID]
	if doc == nil {
		doc = &docLog{seen: make(map[string]struct{})}
		m.docs[documentID] = doc
	}

	applied := 0
	for _, o := range batch {
		if _, dup := doc.seen[o.ID]; dup {
			continue
		}
		doc.nextPos++
		doc.records = append(doc.records, Record{
			OperationID:     o.ID,
			Operation:       o,
			ClientID:        clientID,
			ClientTimestamp: o.Timestamp,
			Position:        doc.nextPos,
		})
		doc.seen[o.ID] = struct{}{}
		applied++
	}
	res := AppendResult{LastPosition: doc.nextPos, AppliedCount: applied}
	hook := m.hook
	m.mu.Unlock()

	if hook != nil && applied > 0 {
		hook(documentID, res.LastPosition)
	}
	return res, nil
}

func (m *MemoryStore) GetOperationsSince(_ context.Context, documentID string, since int64, excludeClientID string) ([]Record, error) {
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.docs[documentID]
	if doc == nil {
		return nil, nil
	}
	var out []Record
	for _, r := range doc.records {
		if r.Position <= since {
			continue
		}
		if excludeClientID != "" && r.ClientID == excludeClientID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
