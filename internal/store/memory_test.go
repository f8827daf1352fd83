package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchsync/sketchsync/internal/core/op"
	"github.com/sketchsync/sketchsync/internal/core/shape"
)

func addOp(clientID, shapeID string) op.Operation {
	return op.NewAdd(clientID, shape.Shape{ID: shapeID, Type: shape.KindRect, Width: 1, Height: 1})
}

func TestMemoryStore_AppendAssignsMonotonicPositions(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	res, err := st.AppendOperations(ctx, "doc", "c1", []op.Operation{addOp("c1", "a"), addOp("c1", "b")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LastPosition)
	assert.Equal(t, 2, res.AppliedCount)

	recs, err := st.GetOperationsSince(ctx, "doc", 0, "")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Less(t, recs[0].Position, recs[1].Position)
}

func TestMemoryStore_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	batch := []op.Operation{addOp("c1", "a")}

	first, err := st.AppendOperations(ctx, "doc", "c1", batch)
	require.NoError(t, err)
	second, err := st.AppendOperations(ctx, "doc", "c1", batch)
	require.NoError(t, err)

	assert.Equal(t, 1, first.AppliedCount)
	assert.Equal(t, 0, second.AppliedCount)
	assert.Equal(t, first.LastPosition, second.LastPosition)

	recs, err := st.GetOperationsSince(ctx, "doc", 0, "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMemoryStore_SinceAndExcludeFilters(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.AppendOperations(ctx, "doc", "c1", []op.Operation{addOp("c1", "a")})
	require.NoError(t, err)
	_, err = st.AppendOperations(ctx, "doc", "c2", []op.Operation{addOp("c2", "b")})
	require.NoError(t, err)

	recs, err := st.GetOperationsSince(ctx, "doc", 0, "c1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c2", recs[0].ClientID)

	recs, err = st.GetOperationsSince(ctx, "doc", recs[0].Position, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryStore_DocumentsAreIsolated(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.AppendOperations(ctx, "doc1", "c1", []op.Operation{addOp("c1", "a")})
	require.NoError(t, err)

	recs, err := st.GetOperationsSince(ctx, "doc2", 0, "")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = st.AppendOperations(ctx, "", "c1", nil)
	assert.ErrorIs(t, err, ErrEmptyDocumentID)
}

func TestMemoryStore_AppendHookFiresOnNewEntriesOnly(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	var calls int
	var lastPos int64
	st.OnAppend(func(doc string, pos int64) {
		calls++
		lastPos = pos
	})

	batch := []op.Operation{addOp("c1", "a")}
	_, err := st.AppendOperations(ctx, "doc", "c1", batch)
	require.NoError(t, err)
	_, err = st.AppendOperations(ctx, "doc", "c1", batch) // duplicate
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), lastPos)
}
