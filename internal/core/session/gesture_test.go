package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchsync/sketchsync/internal/core/shape"
	"github.com/sketchsync/sketchsync/internal/core/transform"
)

func ids(shapes []shape.Shape) []string {
	out := make([]string, len(shapes))
	for i, s := range shapes {
		out[i] = s.ID
	}
	return out
}

func TestGesture_GroupsIntoOneUndoEntry(t *testing.T) {
	a, _, _ := newPair(t)

	require.NoError(t, a.CreateShape(rect("r1")))
	require.NoError(t, a.CreateShape(rect("r2")))
	baseline := a.Checksum()

	a.BeginGesture()
	require.NoError(t, a.TranslateBy("r1", 10, 10))
	require.NoError(t, a.TranslateBy("r2", 10, 10))
	require.NoError(t, a.UpdateFields("r1", map[string]any{"fill": "#0f0"}))
	a.CommitGesture()

	require.Equal(t, 3, a.UndoDepth()) // two creates + one gesture

	require.NoError(t, a.Undo())
	assert.Equal(t, baseline, a.Checksum())
}

func TestGesture_UndoWhileOpenIsRejected(t *testing.T) {
	a, _, _ := newPair(t)
	a.BeginGesture()
	assert.ErrorIs(t, a.Undo(), ErrGestureOpen)
	a.CommitGesture()
	assert.NoError(t, a.Undo())
}

func TestGesture_EmptyCommitRecordsNothing(t *testing.T) {
	a, _, _ := newPair(t)
	a.BeginGesture()
	a.CommitGesture()
	assert.Equal(t, 0, a.UndoDepth())
}

func TestDrag_DiffComputedAtPointerUp(t *testing.T) {
	a, _, _ := newPair(t)
	require.NoError(t, a.CreateShape(rect("r1")))
	require.NoError(t, a.CreateShape(rect("r2")))
	pendingBefore := a.PendingCount()

	d := a.StartDrag("r1", "r2", "ghost")
	require.NoError(t, d.End(5, -5))

	r1, ok := a.Shape("r1")
	require.True(t, ok)
	assert.Equal(t, float64(15), r1.X)
	assert.Equal(t, float64(15), r1.Y)

	// One update per dragged shape, not per pointer-move frame.
	assert.Equal(t, pendingBefore+2, a.PendingCount())

	require.NoError(t, a.Undo())
	r1, _ = a.Shape("r1")
	assert.Equal(t, float64(10), r1.X)
	r2, _ := a.Shape("r2")
	assert.Equal(t, float64(10), r2.X)
}

func TestDrag_ResizePreservesAspect(t *testing.T) {
	a, _, _ := newPair(t)
	require.NoError(t, a.CreateShape(rect("r1"))) // 100x50 at (10,20)

	d := a.StartDrag("r1")
	require.NoError(t, d.EndResize(transform.CornerSE, 150, 70, true))

	r1, ok := a.Shape("r1")
	require.True(t, ok)
	assert.InDelta(t, 2.0, r1.Width/r1.Height, 1e-9)
	assert.Equal(t, float64(10), r1.X)
	assert.Equal(t, float64(20), r1.Y)
}

func TestSetZOrder_ReplicatesAndUndoes(t *testing.T) {
	ctx := context.Background()
	a, b, _ := newPair(t)

	require.NoError(t, a.CreateShape(rect("s1")))
	require.NoError(t, a.CreateShape(rect("s2")))
	require.NoError(t, a.CreateShape(rect("s3")))
	sync2(t, ctx, a, b)

	require.NoError(t, a.SetZOrder("s1", transform.BringToFront))
	assert.Equal(t, []string{"s2", "s3", "s1"}, ids(a.Shapes()))

	sync2(t, ctx, a, b)
	assert.Equal(t, []string{"s2", "s3", "s1"}, ids(b.Shapes()))
	assert.Equal(t, a.Checksum(), b.Checksum())

	require.NoError(t, a.Undo())
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids(a.Shapes()))

	sync2(t, ctx, a, b)
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids(b.Shapes()))
}

func TestSetZOrder_NoOpAtBoundary(t *testing.T) {
	a, _, _ := newPair(t)
	require.NoError(t, a.CreateShape(rect("s1")))
	require.NoError(t, a.CreateShape(rect("s2")))
	pending := a.PendingCount()
	depth := a.UndoDepth()

	require.NoError(t, a.SetZOrder("s1", transform.MoveDown))

	assert.Equal(t, []string{"s1", "s2"}, ids(a.Shapes()))
	assert.Equal(t, pending, a.PendingCount())
	assert.Equal(t, depth, a.UndoDepth())
}

func TestSetZOrder_SendToBack(t *testing.T) {
	ctx := context.Background()
	a, b, _ := newPair(t)

	require.NoError(t, a.CreateShape(rect("s1")))
	require.NoError(t, a.CreateShape(rect("s2")))
	require.NoError(t, a.CreateShape(rect("s3")))
	sync2(t, ctx, a, b)

	require.NoError(t, b.SetZOrder("s3", transform.SendToBack))
	assert.Equal(t, []string{"s3", "s1", "s2"}, ids(b.Shapes()))

	sync2(t, ctx, b, a)
	assert.Equal(t, []string{"s3", "s1", "s2"}, ids(a.Shapes()))
}

func TestTranslateBy_PersistsAbsoluteValues(t *testing.T) {
	ctx := context.Background()
	a, _, st := newPair(t)

	require.NoError(t, a.CreateShape(rect("r1")))
	require.NoError(t, a.TranslateBy("r1", 7, 3))
	require.NoError(t, a.Flush(ctx))

	recs, err := st.GetOperationsSince(ctx, "doc", 0, "")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	up := recs[1].Operation
	assert.Equal(t, float64(17), up.Updates["x"])
	assert.Equal(t, float64(23), up.Updates["y"])
	assert.Equal(t, float64(10), up.Previous["x"])
}

func TestUpdateFields_MissingShape(t *testing.T) {
	a, _, _ := newPair(t)
	err := a.UpdateFields("ghost", map[string]any{"x": float64(1)})
	assert.ErrorIs(t, err, ErrShapeNotFound)
}
