package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchsync/sketchsync/internal/core/session"
	"github.com/sketchsync/sketchsync/internal/core/shape"
	"github.com/sketchsync/sketchsync/internal/store"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	cfg := session.Config{FlushDebounce: time.Hour, PollInterval: time.Hour}
	return session.New("doc", "agent", store.NewMemoryStore(), cfg, nil)
}

func TestParse(t *testing.T) {
	payload := []byte(`[
		{"tool": "create", "kind": "rect", "x": 10, "y": 20, "width": 50, "height": 30, "fill": "#f00"},
		{"tool": "move", "shapeId": "r1", "dx": 5, "dy": -5}
	]`)
	cmds, err := Parse(payload)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "create", cmds[0].Tool)
	assert.Equal(t, shape.KindRect, cmds[0].Kind)
	assert.Equal(t, float64(5), cmds[1].DX)

	_, err = Parse([]byte(`{"not": "a list"}`))
	assert.Error(t, err)
}

func TestApply_CreateAndRecolor(t *testing.T) {
	s := newSession(t)

	require.NoError(t, Apply(s, Command{Tool: "create", Kind: shape.KindEllipse, Fill: "#0f0"}))
	shapes := s.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, shape.KindEllipse, shapes[0].Type)
	assert.Equal(t, "#0f0", shapes[0].Fill)
	assert.Equal(t, float64(100), shapes[0].Width)

	require.NoError(t, Apply(s, Command{Tool: "recolor", ShapeID: shapes[0].ID, Fill: "#00f"}))
	sh, ok := s.Shape(shapes[0].ID)
	require.True(t, ok)
	assert.Equal(t, "#00f", sh.Fill)
}

func TestApply_MoveAndEditText(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.CreateShape(shape.Shape{ID: "t1", Type: shape.KindText, X: 1, Y: 1, Text: "old", FontSize: 12}))

	require.NoError(t, Apply(s, Command{Tool: "move", ShapeID: "t1", DX: 4, DY: 6}))
	require.NoError(t, Apply(s, Command{Tool: "editText", ShapeID: "t1", Text: "new"}))

	sh, ok := s.Shape("t1")
	require.True(t, ok)
	assert.Equal(t, float64(5), sh.X)
	assert.Equal(t, float64(7), sh.Y)
	assert.Equal(t, "new", sh.Text)
}

func TestApply_Errors(t *testing.T) {
	s := newSession(t)
	assert.ErrorIs(t, Apply(s, Command{Tool: "levitate"}), ErrUnknownTool)
	assert.ErrorIs(t, Apply(s, Command{Tool: "move"}), ErrMissingTarget)
	assert.ErrorIs(t, Apply(s, Command{Tool: "recolor"}), ErrMissingTarget)
}

func TestApplyAll_IsOneUndoEntry(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.CreateShape(shape.Shape{ID: "r1", Type: shape.KindRect, X: 0, Y: 0, Width: 10, Height: 10}))
	baseline := s.Checksum()
	depth := s.UndoDepth()

	err := ApplyAll(s, []Command{
		{Tool: "move", ShapeID: "r1", DX: 5, DY: 5},
		{Tool: "recolor", ShapeID: "r1", Fill: "#123"},
	})
	require.NoError(t, err)
	assert.Equal(t, depth+1, s.UndoDepth())

	require.NoError(t, s.Undo())
	assert.Equal(t, baseline, s.Checksum())
}
