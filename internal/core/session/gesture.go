package session

import (
	"fmt"

	"github.com/sketchsync/sketchsync/internal/core/op"
	"github.com/sketchsync/sketchsync/internal/core/shape"
	"github.com/sketchsync/sketchsync/internal/core/transform"
)

// The gesture layer: thin orchestration translating pointer intents
// into operations. Deltas are resolved against the current shape state
// to absolute values here, before enqueuing, so the persisted
// operations replay and invert cleanly against any state.

// CreateShape adds a new shape to the document.
func (s *Session) CreateShape(sh shape.Shape) error {
	return s.Submit(op.NewAdd(s.clientID, sh))
}

// RemoveShape deletes a shape by id. Removing an id that is already
// gone is a no-op, not an error.
func (s *Session) RemoveShape(id string) error {
	sh, ok := s.Shape(id)
	if !ok {
		return nil
	}
	return s.Submit(op.NewDelete(s.clientID, sh))
}

// UpdateFields sets the given fields on a shape, capturing the current
// values as the paired previousValues so the edit inverts exactly.
func (s *Session) UpdateFields(id string, updates map[string]any) error {
	sh, ok := s.Shape(id)
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrShapeNotFound)
	}
	current, err := sh.FieldMap()
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	previous := make(map[string]any, len(updates))
	for k := range updates {
		previous[k] = current[k] // nil when the field was absent
	}
	return s.Submit(op.NewUpdate(s.clientID, id, updates, previous))
}

// TranslateBy moves a shape by (dx, dy). The delta is applied to the
// session's current view of the shape and persisted as absolute
// positions.
func (s *Session) TranslateBy(id string, dx, dy float64) error {
	sh, ok := s.Shape(id)
	if !ok {
		return fmt.Errorf("translate %s: %w", id, ErrShapeNotFound)
	}
	return s.submitDiff(sh, transform.MoveBy(sh, dx, dy))
}

// ResizeTo reprojects a shape's bounding-box corner to the pointer
// position, optionally preserving the aspect ratio.
func (s *Session) ResizeTo(id string, corner transform.Corner, targetX, targetY float64, preserveAspect bool) error {
	sh, ok := s.Shape(id)
	if !ok {
		return fmt.Errorf("resize %s: %w", id, ErrShapeNotFound)
	}
	return s.submitDiff(sh, transform.ResizeShape(sh, corner, targetX, targetY, preserveAspect))
}

func (s *Session) submitDiff(before, after shape.Shape) error {
	updates, previous, err := op.Diff(before, after)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	return s.Submit(op.NewUpdate(s.clientID, before.ID, updates, previous))
}

// SetZOrder reorders the collection's paint order. Order is history
// order, so the reordered tail is replicated as delete/re-add pairs;
// every session folding them lands on the same order. The undo entry
// re-establishes the original tail order the same way.
func (s *Session) SetZOrder(id string, cmd transform.ZOrderCommand) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	newOrder := transform.ApplyZOrder(s.shapes, id, cmd)
	firstDiff := -1
	for i := range newOrder {
		if newOrder[i].ID != s.shapes[i].ID {
			firstDiff = i
			break
		}
	}
	if firstDiff < 0 {
		s.mu.Unlock()
		return nil
	}

	oldTail := make([]shape.Shape, len(s.shapes)-firstDiff)
	for i, sh := range s.shapes[firstDiff:] {
		oldTail[i] = sh.Clone()
	}

	for _, sh := range newOrder[firstDiff:] {
		forward := []op.Operation{
			op.NewDelete(s.clientID, sh),
			op.NewAdd(s.clientID, sh),
		}
		for _, o := range forward {
			if err := s.applyLocked(o, false); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("reorder %s: %w", id, err)
			}
		}
	}

	inverse := make([]op.Operation, 0, 2*len(oldTail))
	for _, sh := range oldTail {
		inverse = append(inverse,
			op.NewDelete(s.clientID, sh),
			op.NewAdd(s.clientID, sh),
		)
	}
	s.pushUndoGroupLocked(inverse)
	s.scheduleFlushLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Drag captures the state of the selected shapes at pointer-down. The
// final operations are built once from the before/after diff at
// pointer-up rather than per pointer-move, so one drag is one undo
// entry and one batch of updates.
type Drag struct {
	session *Session
	before  []shape.Shape
}

// StartDrag snapshots the named shapes; ids that do not resolve are
// skipped.
func (s *Session) StartDrag(ids ...string) *Drag {
	before := make([]shape.Shape, 0, len(ids))
	for _, id := range ids {
		if sh, ok := s.Shape(id); ok {
			before = append(before, sh)
		}
	}
	return &Drag{session: s, before: before}
}

// End commits the drag with the total pointer displacement. Shapes
// deleted by a concurrent session mid-drag are skipped.
func (d *Drag) End(dx, dy float64) error {
	s := d.session
	s.BeginGesture()
	defer s.CommitGesture()

	for _, before := range d.before {
		if _, ok := s.Shape(before.ID); !ok {
			continue
		}
		if err := s.submitDiff(before, transform.MoveBy(before, dx, dy)); err != nil {
			return fmt.Errorf("end drag: %w", err)
		}
	}
	return nil
}

// EndResize commits the drag as a corner resize of the single captured
// shape.
func (d *Drag) EndResize(corner transform.Corner, targetX, targetY float64, preserveAspect bool) error {
	s := d.session
	s.BeginGesture()
	defer s.CommitGesture()

	for _, before := range d.before {
		if _, ok := s.Shape(before.ID); !ok {
			continue
		}
		after := transform.ResizeShape(before, corner, targetX, targetY, preserveAspect)
		if err := s.submitDiff(before, after); err != nil {
			return fmt.Errorf("end resize: %w", err)
		}
	}
	return nil
}
