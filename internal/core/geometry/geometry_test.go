package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRect_Normalize(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: -4, Height: -6}.Normalize()
	assert.Equal(t, Rect{X: 6, Y: 4, Width: 4, Height: 6}, r)

	// Already normalized rects are unchanged.
	r = Rect{X: 1, Y: 2, Width: 3, Height: 4}
	assert.Equal(t, r, r.Normalize())
}

func TestRect_Union(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: -5, Width: 10, Height: 10}
	u := a.Union(b)
	assert.Equal(t, Rect{X: 0, Y: -5, Width: 15, Height: 15}, u)
}

func TestRect_ContainsIntersects(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	assert.True(t, r.Contains(Point{X: 10, Y: 10}))
	assert.False(t, r.Contains(Point{X: 10.01, Y: 10}))
	assert.True(t, r.Intersects(Rect{X: 9, Y: 9, Width: 5, Height: 5}))
	assert.False(t, r.Intersects(Rect{X: 11, Y: 11, Width: 5, Height: 5}))
}

func TestBoundsOfPoints(t *testing.T) {
	pts := []Point{{X: 3, Y: 7}, {X: -1, Y: 2}, {X: 5, Y: 4}}
	b := BoundsOfPoints(pts)
	require.Equal(t, Rect{X: -1, Y: 2, Width: 6, Height: 5}, b)

	assert.Equal(t, Rect{}, BoundsOfPoints(nil))
}

func TestDistanceAndCentroid(t *testing.T) {
	assert.InDelta(t, 5, Distance(Point{X: 0, Y: 0}, Point{X: 3, Y: 4}), 1e-9)

	c := Centroid([]Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 2, Y: 6}})
	assert.InDelta(t, 2, c.X, 1e-9)
	assert.InDelta(t, 2, c.Y, 1e-9)
}
