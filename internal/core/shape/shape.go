package shape

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the shape union on the wire.
type Kind string

const (
	KindRect    Kind = "rect"
	KindEllipse Kind = "ellipse"
	KindLine    Kind = "line"
	KindText    Kind = "text"
	KindSVG     Kind = "svg"
	KindImage   Kind = "image"
	KindPath    Kind = "path"
)

var knownKinds = map[Kind]struct{}{
	KindRect:    {},
	KindEllipse: {},
	KindLine:    {},
	KindText:    {},
	KindSVG:     {},
	KindImage:   {},
	KindPath:    {},
}

// PathPoint is one vertex of a freehand path. MoveTo marks the start of
// a disjoint sub-stroke.
type PathPoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	MoveTo bool    `json:"moveTo,omitempty"`
}

// Shadow describes an optional text drop shadow.
type Shadow struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Blur    float64 `json:"blur,omitempty"`
	Color   string  `json:"color,omitempty"`
}

// Shape is a single drawable document element. It is a tagged union:
// Type selects which of the kind-specific fields are meaningful, and
// absent optional fields serialize away entirely so partial-update
// diffs stay minimal. A zero numeric value and an absent field are
// equivalent for every optional field except Opacity, which is a
// pointer so that fully transparent and unset stay distinct.
type Shape struct {
	ID       string  `json:"id"`
	Type     Kind    `json:"type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation,omitempty"`

	Stroke      string   `json:"stroke,omitempty"`
	StrokeWidth float64  `json:"strokeWidth,omitempty"`
	Fill        string   `json:"fill,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`

	// rect, ellipse, svg, image
	Width        float64 `json:"width,omitempty"`
	Height       float64 `json:"height,omitempty"`
	CornerRadius float64 `json:"cornerRadius,omitempty"` // rect only

	// line
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`

	// text
	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty"`
	Shadow     *Shadow `json:"shadow,omitempty"`

	// svg fragment markup
	SVG string `json:"svg,omitempty"`

	// raster image
	URL string `json:"url,omitempty"`

	// freehand path
	Points []PathPoint `json:"points,omitempty"`
}

// Clone returns a deep copy. Mutating the copy never aliases the
// original's points, opacity or shadow.
func (s Shape) Clone() Shape {
	out := s
	if s.Opacity != nil {
		v := *s.Opacity
		out.Opacity = &v
	}
	if s.Shadow != nil {
		sh := *s.Shadow
		out.Shadow = &sh
	}
	if s.Points != nil {
		out.Points = make([]PathPoint, len(s.Points))
		copy(out.Points, s.Points)
	}
	return out
}

// Validate checks the structural invariants of the union before a
// shape is accepted onto the wire or into a collection.
func (s Shape) Validate() error {
	if s.ID == "" {
		return ErrMissingID
	}
	if _, ok := knownKinds[s.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, s.Type)
	}
	switch s.Type {
	case KindRect, KindEllipse, KindSVG, KindImage:
		if s.Width < 0 || s.Height < 0 {
			return ErrNegativeSize
		}
	case KindText:
		if s.FontSize <= 0 {
			return ErrInvalidFontSize
		}
	case KindPath:
		if len(s.Points) == 0 {
			return ErrEmptyPath
		}
	}
	if s.Opacity != nil && (*s.Opacity < 0 || *s.Opacity > 1) {
		return ErrInvalidOpacity
	}
	return nil
}

// FieldMap flattens the shape to its wire-level field map. Used to
// build and apply partial updates field by field.
func (s Shape) FieldMap() (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode shape: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode shape fields: %w", err)
	}
	return m, nil
}

// Merge applies a partial field map onto the shape and returns the
// merged shape. The id and type of the receiver are immutable: any
// "id" or "type" keys in updates are ignored. A nil value deletes the
// field, resetting it to its zero value.
func (s Shape) Merge(updates map[string]any) (Shape, error) {
	m, err := s.FieldMap()
	if err != nil {
		return Shape{}, err
	}
	for k, v := range updates {
		if k == "id" || k == "type" {
			continue
		}
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	m["id"] = s.ID
	m["type"] = string(s.Type)

	data, err := json.Marshal(m)
	if err != nil {
		return Shape{}, fmt.Errorf("encode merged fields: %w", err)
	}
	var out Shape
	if err := json.Unmarshal(data, &out); err != nil {
		return Shape{}, fmt.Errorf("%w: %v", ErrBadFieldValue, err)
	}
	return out, nil
}
