// Package session implements the client side of the synchronization
// protocol: a per-document materialized shape collection with
// optimistic local apply, a debounced pending queue flushed to the
// operation log, cursor-based incremental pull, duplicate suppression
// and an undo stack of inverse operations.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sketchsync/sketchsync/internal/core/op"
	"github.com/sketchsync/sketchsync/internal/core/shape"
	"github.com/sketchsync/sketchsync/internal/store"
)

// Session is the mutable per-document, per-client state. All exported
// methods are safe for concurrent use; the collection is only mutated
// under the session lock, and network calls happen outside it.
type Session struct {
	mu sync.Mutex

	documentID string
	clientID   string
	st         store.Store
	logBase    *zap.Logger // unscoped; log is rebuilt from it on Reset
	log        *zap.Logger
	cfg        Config

	shapes  []shape.Shape
	pending []op.Operation
	cursor  int64
	applied map[string]struct{}

	undo        [][]op.Operation
	gesture     []op.Operation
	gestureOpen bool

	// generation invalidates in-flight pulls across a document switch.
	generation int

	flushTimer     *time.Timer
	flushScheduled bool
	closed         bool

	onChange func()
}

// New opens a session for one document. An empty clientID gets a fresh
// identity; a nil logger disables logging.
func New(documentID, clientID string, st store.Store, cfg Config, logger *zap.Logger) *Session {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		documentID: documentID,
		clientID:   clientID,
		st:         st,
		logBase:    logger,
		log:        logger.With(zap.String("document", documentID), zap.String("client", clientID)),
		cfg:        cfg.withDefaults(),
		applied:    make(map[string]struct{}),
	}
}

func (s *Session) DocumentID() string { return s.documentID }
func (s *Session) ClientID() string   { return s.clientID }

// SetOnChange registers a callback fired after the materialized
// collection changes, from local edits, undo or remote pulls. The
// render layer subscribes here.
func (s *Session) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Shapes returns a deep copy of the materialized collection in z-order.
func (s *Session) Shapes() []shape.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shape.Shape, len(s.shapes))
	for i, sh := range s.shapes {
		out[i] = sh.Clone()
	}
	return out
}

// Shape returns the current state of one shape by id.
func (s *Session) Shape(id string) (shape.Shape, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shapes {
		if sh.ID == id {
			return sh.Clone(), true
		}
	}
	return shape.Shape{}, false
}

// Checksum digests the materialized collection. Sessions that have
// consumed the same log prefix agree on it.
func (s *Session) Checksum() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return op.Checksum(s.shapes)
}

// Cursor returns the highest log position consumed so far.
func (s *Session) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// PendingCount returns the number of operations awaiting flush.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// UndoDepth returns the number of undoable entries.
func (s *Session) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo)
}

// Submit applies a locally originated operation: it mutates the
// materialized collection synchronously, records the inverse for undo,
// enqueues the operation for the store and schedules a debounced
// flush. The local edit always appears to succeed instantly;
// persistence failures degrade to background retry.
func (s *Session) Submit(o op.Operation) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err := s.applyLocked(o, true); err != nil {
		s.mu.Unlock()
		return err
	}
	s.scheduleFlushLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// applyLocked folds a local operation into the collection, enqueues it
// and optionally records its inverse. Callers hold s.mu.
func (s *Session) applyLocked(o op.Operation, recordUndo bool) error {
	next, err := op.Apply(s.shapes, o)
	if err != nil {
		return fmt.Errorf("apply local operation: %w", err)
	}
	s.shapes = next

	if recordUndo {
		inv := o.Invert()
		if s.gestureOpen {
			s.gesture = append(s.gesture, inv)
		} else {
			s.undo = append(s.undo, []op.Operation{inv})
		}
	}
	s.pending = append(s.pending, o)
	s.applied[o.ID] = struct{}{}
	return nil
}

// scheduleFlushLocked arms the debounce timer once; edits arriving
// inside the window ride the same batch.
func (s *Session) scheduleFlushLocked() {
	if s.flushScheduled || s.closed {
		return
	}
	s.flushScheduled = true
	s.flushTimer = time.AfterFunc(s.cfg.FlushDebounce, func() {
		if err := s.Flush(context.Background()); err != nil {
			s.log.Warn("background flush failed", zap.Error(err))
		}
	})
}

// Flush sends the pending queue to the store as one batch. On failure
// the batch is re-prepended for the next attempt; because the append
// is idempotent by operation id, re-sending already-stored operations
// is always safe.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.flushScheduled = false
	batch := s.pending
	s.pending = nil
	doc := s.documentID
	gen := s.generation
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	res, err := s.st.AppendOperations(ctx, doc, s.clientID, batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.pending = append(batch, s.pending...)
		if !s.closed {
			s.scheduleFlushLocked()
		}
		return fmt.Errorf("flush %d operations: %w", len(batch), err)
	}
	if gen == s.generation && res.LastPosition > s.cursor {
		s.cursor = res.LastPosition
	}
	s.log.Debug("flushed batch",
		zap.Int("operations", len(batch)),
		zap.Int("applied", res.AppliedCount),
		zap.Int64("cursor", s.cursor),
	)
	return nil
}

// Pull fetches operations appended after the cursor, excluding this
// session's own, and folds the new ones into the collection. The
// cursor advances past duplicates and malformed entries too, so it
// never regresses and never stalls. Results that arrive after a
// document switch are discarded.
func (s *Session) Pull(ctx context.Context) error {
	s.mu.Lock()
	doc := s.documentID
	since := s.cursor
	gen := s.generation
	s.mu.Unlock()

	recs, err := s.st.GetOperationsSince(ctx, doc, since, s.clientID)
	if err != nil {
		return fmt.Errorf("pull since %d: %w", since, err)
	}

	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		return nil
	}
	changed := false
	for _, rec := range recs {
		if rec.Position > s.cursor {
			s.cursor = rec.Position
		}
		if _, dup := s.applied[rec.OperationID]; dup {
			continue
		}
		if err := rec.Operation.Validate(); err != nil {
			// Reject-and-skip: a malformed operation must not crash the
			// fold, and marking it consumed stops endless retries.
			s.log.Warn("skipping malformed remote operation",
				zap.String("operation", rec.OperationID),
				zap.Error(err),
			)
			s.applied[rec.OperationID] = struct{}{}
			continue
		}
		next, err := op.Apply(s.shapes, rec.Operation)
		if err != nil {
			s.log.Warn("skipping inapplicable remote operation",
				zap.String("operation", rec.OperationID),
				zap.Error(err),
			)
			s.applied[rec.OperationID] = struct{}{}
			continue
		}
		s.shapes = next
		s.applied[rec.OperationID] = struct{}{}
		changed = true
	}
	fn := s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn()
	}
	return nil
}

// Run polls the store at the configured interval until ctx is done.
// Push notifications can shorten latency by calling Pull directly; the
// poll loop is the correctness backstop.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Pull(ctx); err != nil {
				s.log.Warn("poll failed", zap.Error(err))
			}
		}
	}
}

// Reset switches the session to a different document: pending edits of
// the old document are flushed best-effort, then the collection is
// reseeded from the given snapshot, the cursor zeroed and the stacks
// cleared. In-flight pulls for the old document are discarded by the
// generation bump.
func (s *Session) Reset(ctx context.Context, documentID string, seed []shape.Shape) error {
	flushErr := s.Flush(ctx)

	s.mu.Lock()
	s.documentID = documentID
	s.shapes = make([]shape.Shape, len(seed))
	for i, sh := range seed {
		s.shapes[i] = sh.Clone()
	}
	s.pending = nil
	s.cursor = 0
	s.applied = make(map[string]struct{})
	s.undo = nil
	s.gesture = nil
	s.gestureOpen = false
	s.generation++
	s.log = s.logBase.With(zap.String("document", documentID), zap.String("client", s.clientID))
	s.mu.Unlock()

	if flushErr != nil {
		return fmt.Errorf("reset: %w", flushErr)
	}
	return nil
}

// Close flushes any pending operations synchronously and tears the
// session down. Edits made just before navigation away are not lost
// silently; the flush error, if any, is returned to the caller.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.mu.Unlock()

	err := s.Flush(ctx)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
