package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sketchsync/sketchsync/internal/core/op"
)

// BeginGesture opens a gesture boundary. Operations submitted until
// CommitGesture collapse into a single undo entry, so a multi-step
// gesture (dragging several shapes, one freehand stroke) steps back in
// one Undo call.
func (s *Session) BeginGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gestureOpen {
		return
	}
	s.gestureOpen = true
	s.gesture = nil
}

// CommitGesture closes the gesture and pushes the collected inverses
// as one undo entry. Inverses run in reverse submission order so
// dependent edits within the gesture unwind correctly.
func (s *Session) CommitGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gestureOpen {
		return
	}
	s.gestureOpen = false
	if len(s.gesture) == 0 {
		return
	}
	group := make([]op.Operation, len(s.gesture))
	for i, inv := range s.gesture {
		group[len(group)-1-i] = inv
	}
	s.gesture = nil
	s.undo = append(s.undo, group)
}

// Undo pops the most recent entry and applies its inverses locally
// without recording a new undo entry, then replicates them through the
// pending queue like any other local edit; other sessions see the undo
// as an ordinary operation, not a special wire message. Undoing with
// an empty stack, or undoing an edit whose target a concurrent session
// already removed, is a benign no-op.
func (s *Session) Undo() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.gestureOpen {
		s.mu.Unlock()
		return ErrGestureOpen
	}
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return nil
	}
	group := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	for _, inv := range group {
		if err := s.applyLocked(inv, false); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("undo: %w", err)
		}
	}
	s.scheduleFlushLocked()
	s.log.Debug("undid entry", zap.Int("operations", len(group)), zap.Int("depth", len(s.undo)))
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// pushUndoGroupLocked records a pre-built inverse group, used by
// compound edits whose inverse is not the per-operation inversion of
// the forward sequence (z-order reordering). Callers hold s.mu.
func (s *Session) pushUndoGroupLocked(group []op.Operation) {
	if len(group) == 0 {
		return
	}
	if s.gestureOpen {
		// Collected in submission order like plain inverses; the commit
		// reversal restores the right unwind order.
		for i := len(group) - 1; i >= 0; i-- {
			s.gesture = append(s.gesture, group[i])
		}
		return
	}
	s.undo = append(s.undo, group)
}
