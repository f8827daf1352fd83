// Package store defines the append-only operation log boundary: the
// single source of truth coordinating independent sessions. Entries
// are immutable once appended, ordered by a server-assigned position,
// and deduplicated by (documentID, operationID) so retrying a batch is
// always safe.
package store

import (
	"context"
	"errors"

	"github.com/sketchsync/sketchsync/internal/core/op"
)

var (
	ErrEmptyDocumentID = errors.New("document id is required")
	ErrUnavailable     = errors.New("store unavailable")
	ErrUnauthorized    = errors.New("not authorized for document")
)

// Record is one stored log entry. Position is the server-assigned
// logical timestamp, distinct from the client wall clock carried
// inside the operation.
type Record struct {
	OperationID     string       `json:"operationId"`
	Operation       op.Operation `json:"operation"`
	ClientID        string       `json:"clientId"`
	ClientTimestamp int64        `json:"clientTimestamp"`
	Position        int64        `json:"position"`
}

// AppendResult reports the outcome of an append batch. LastPosition is
// the highest position in the document's log after the call, whether
// or not any entry of this batch was new.
type AppendResult struct {
	LastPosition int64 `json:"lastPosition"`
	AppliedCount int   `json:"appliedCount"`
}

// Store is the operation log RPC surface consumed by sessions and
// served by backends. AppendOperations is idempotent per
// (documentID, operation id); GetOperationsSince returns entries with
// position > since in position order, optionally excluding one client.
type Store interface {
	AppendOperations(ctx context.Context, documentID, clientID string, batch []op.Operation) (AppendResult, error)
	GetOperationsSince(ctx context.Context, documentID string, since int64, excludeClientID string) ([]Record, error)
}

// AppendHook observes successful appends; the server uses it to fan
// out log positions to subscribed sessions.
type AppendHook func(documentID string, lastPosition int64)

// Notifier propagates append positions between server instances.
type Notifier interface {
	Publish(ctx context.Context, documentID string, position int64) error
	Subscribe(ctx context.Context, fn AppendHook) error
}

// wire DTOs shared between the HTTP client and the server.

type AppendRequest struct {
	ClientID   string          `json:"clientId"`
	Operations []WireOperation `json:"operations"`
}

type WireOperation struct {
	OperationID     string       `json:"operationId"`
	Operation       op.Operation `json:"operation"`
	ClientTimestamp int64        `json:"clientTimestamp"`
}

type AppendResponse struct {
	LastPosition int64 `json:"lastPosition"`
	AppliedCount int   `json:"appliedCount"`
}

type OperationsResponse struct {
	Operations []Record `json:"operations"`
}
