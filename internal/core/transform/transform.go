// Package transform turns editing gestures into concrete shape
// geometry: bounding boxes, translation, corner-anchored resize and
// z-order reordering. All functions are pure; callers build operations
// from the returned values.
package transform

import (
	"math"

	"github.com/sketchsync/sketchsync/internal/core/geometry"
	"github.com/sketchsync/sketchsync/internal/core/shape"
)

// Corner names one of the four bounding-box handles used as the pivot
// for interactive resize.
type Corner string

const (
	CornerNW Corner = "nw"
	CornerNE Corner = "ne"
	CornerSW Corner = "sw"
	CornerSE Corner = "se"
)

// Width of an average glyph relative to the font size. Text bounds are
// approximated from character count, not glyph metrics.
const textGlyphWidthFactor = 0.6

// BoundsOf returns the axis-aligned bounding box of a shape.
func BoundsOf(s shape.Shape) geometry.Rect {
	switch s.Type {
	case shape.KindLine:
		return geometry.Rect{
			X: s.X, Y: s.Y,
			Width: s.X2 - s.X, Height: s.Y2 - s.Y,
		}.Normalize()
	case shape.KindText:
		w := float64(len([]rune(s.Text))) * s.FontSize * textGlyphWidthFactor
		return geometry.Rect{X: s.X, Y: s.Y, Width: w, Height: s.FontSize}
	case shape.KindPath:
		pts := make([]geometry.Point, len(s.Points))
		for i, p := range s.Points {
			pts[i] = geometry.Point{X: p.X, Y: p.Y}
		}
		return geometry.BoundsOfPoints(pts)
	default:
		return geometry.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
	}
}

// MoveBy translates a shape by (dx, dy) and returns the moved copy.
// Lines move both endpoints; paths move every point.
func MoveBy(s shape.Shape, dx, dy float64) shape.Shape {
	out := s.Clone()
	out.X += dx
	out.Y += dy
	switch s.Type {
	case shape.KindLine:
		out.X2 += dx
		out.Y2 += dy
	case shape.KindPath:
		for i := range out.Points {
			out.Points[i].X += dx
			out.Points[i].Y += dy
		}
	}
	return out
}

// ResizeCorner reprojects one corner of the bounding box to the target
// point while the opposite corner stays fixed. Dragging past the
// anchor flips the effective corner instead of going negative. With
// preserveAspect set, whichever axis scaled more wins and the other is
// recomputed from the original aspect ratio, still anchored at the
// opposite corner.
func ResizeCorner(original geometry.Rect, corner Corner, targetX, targetY float64, preserveAspect bool) geometry.Rect {
	ax, ay := anchorOf(original, corner)

	w := math.Abs(targetX - ax)
	h := math.Abs(targetY - ay)

	if preserveAspect && original.Width > 0 && original.Height > 0 {
		ratio := original.Width / original.Height
		if w/original.Width >= h/original.Height {
			h = w / ratio
		} else {
			w = h * ratio
		}
	}

	x := ax
	if targetX < ax {
		x = ax - w
	}
	y := ay
	if targetY < ay {
		y = ay - h
	}
	return geometry.Rect{X: x, Y: y, Width: w, Height: h}
}

// ResizePath maps every original point into the resized bounding box
// at the same relative position it held in the old box.
func ResizePath(points []shape.PathPoint, corner Corner, targetX, targetY float64, preserveAspect bool) []shape.PathPoint {
	pts := make([]geometry.Point, len(points))
	for i, p := range points {
		pts[i] = geometry.Point{X: p.X, Y: p.Y}
	}
	old := geometry.BoundsOfPoints(pts)
	box := ResizeCorner(old, corner, targetX, targetY, preserveAspect)

	out := make([]shape.PathPoint, len(points))
	for i, p := range points {
		rx, ry := 0.0, 0.0
		if old.Width != 0 {
			rx = (p.X - old.X) / old.Width
		}
		if old.Height != 0 {
			ry = (p.Y - old.Y) / old.Height
		}
		out[i] = shape.PathPoint{
			X:      box.X + rx*box.Width,
			Y:      box.Y + ry*box.Height,
			MoveTo: p.MoveTo,
		}
	}
	return out
}

// ResizeShape applies a corner resize to a shape. Box-like kinds take
// the new rect directly; lines and paths rescale their points into it;
// text scales its font size by the height ratio since it carries no
// explicit box.
func ResizeShape(s shape.Shape, corner Corner, targetX, targetY float64, preserveAspect bool) shape.Shape {
	out := s.Clone()
	switch s.Type {
	case shape.KindPath:
		out.Points = ResizePath(s.Points, corner, targetX, targetY, preserveAspect)
		box := BoundsOf(out)
		out.X, out.Y = box.X, box.Y
		return out

	case shape.KindLine:
		old := BoundsOf(s)
		box := ResizeCorner(old, corner, targetX, targetY, preserveAspect)
		out.X = remap(s.X, old.X, old.Width, box.X, box.Width)
		out.Y = remap(s.Y, old.Y, old.Height, box.Y, box.Height)
		out.X2 = remap(s.X2, old.X, old.Width, box.X, box.Width)
		out.Y2 = remap(s.Y2, old.Y, old.Height, box.Y, box.Height)
		return out

	case shape.KindText:
		old := BoundsOf(s)
		box := ResizeCorner(old, corner, targetX, targetY, preserveAspect)
		out.X, out.Y = box.X, box.Y
		if old.Height > 0 {
			out.FontSize = s.FontSize * (box.Height / old.Height)
		}
		return out

	default:
		old := BoundsOf(s)
		box := ResizeCorner(old, corner, targetX, targetY, preserveAspect)
		out.X, out.Y = box.X, box.Y
		out.Width, out.Height = box.Width, box.Height
		return out
	}
}

// ZOrderCommand names a reordering of the collection's paint order.
type ZOrderCommand string

const (
	BringToFront ZOrderCommand = "bringToFront"
	SendToBack   ZOrderCommand = "sendToBack"
	MoveUp       ZOrderCommand = "moveUp"
	MoveDown     ZOrderCommand = "moveDown"
)

// ApplyZOrder returns the collection with the identified shape
// reordered. Later entries paint on top, so bringToFront moves the
// shape to the end. moveUp/moveDown swap with the adjacent sibling and
// are no-ops at the respective boundary; an unknown id leaves the
// collection unchanged.
func ApplyZOrder(collection []shape.Shape, id string, cmd ZOrderCommand) []shape.Shape {
	idx := -1
	for i, s := range collection {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return collection
	}

	out := make([]shape.Shape, len(collection))
	copy(out, collection)
	target := out[idx]

	switch cmd {
	case BringToFront:
		out = append(append(out[:idx], out[idx+1:]...), target)
	case SendToBack:
		rest := append([]shape.Shape{target}, out[:idx]...)
		out = append(rest, out[idx+1:]...)
	case MoveUp:
		if idx < len(out)-1 {
			out[idx], out[idx+1] = out[idx+1], out[idx]
		}
	case MoveDown:
		if idx > 0 {
			out[idx], out[idx-1] = out[idx-1], out[idx]
		}
	}
	return out
}

func remap(v, oldOrigin, oldExtent, newOrigin, newExtent float64) float64 {
	if oldExtent == 0 {
		return newOrigin
	}
	return newOrigin + (v-oldOrigin)/oldExtent*newExtent
}

func anchorOf(r geometry.Rect, corner Corner) (float64, float64) {
	switch corner {
	case CornerNW:
		return r.MaxX(), r.MaxY()
	case CornerNE:
		return r.MinX(), r.MaxY()
	case CornerSW:
		return r.MaxX(), r.MinY()
	default: // se
		return r.MinX(), r.MinY()
	}
}
