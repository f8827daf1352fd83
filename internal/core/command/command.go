// Package command translates structured commands, as emitted by an
// external instruction agent, into the same operations manual gestures
// produce. The sync engine cannot tell the two apart.
package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sketchsync/sketchsync/internal/core/session"
	"github.com/sketchsync/sketchsync/internal/core/shape"
	"github.com/sketchsync/sketchsync/internal/core/transform"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrMissingTarget = errors.New("command requires a shape id")
)

// Command is one structured instruction. Tool selects the action;
// only the fields relevant to that tool are read.
type Command struct {
	Tool    string     `json:"tool"`
	ShapeID string     `json:"shapeId,omitempty"`
	Kind    shape.Kind `json:"kind,omitempty"`

	DX float64  `json:"dx,omitempty"`
	DY float64  `json:"dy,omitempty"`
	X  *float64 `json:"x,omitempty"`
	Y  *float64 `json:"y,omitempty"`

	Corner         transform.Corner `json:"corner,omitempty"`
	TargetX        float64          `json:"targetX,omitempty"`
	TargetY        float64          `json:"targetY,omitempty"`
	PreserveAspect bool             `json:"preserveAspect,omitempty"`

	Fill   string `json:"fill,omitempty"`
	Stroke string `json:"stroke,omitempty"`
	Text   string `json:"text,omitempty"`

	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	Order transform.ZOrderCommand `json:"order,omitempty"`
}

// Parse decodes a command list from the agent's response payload.
func Parse(data []byte) ([]Command, error) {
	var cmds []Command
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("parse commands: %w", err)
	}
	return cmds, nil
}

// Apply executes one command against a session. Each command lands as
// ordinary AddShape/UpdateShape/DeleteShape operations.
func Apply(s *session.Session, c Command) error {
	switch c.Tool {
	case "create":
		return s.CreateShape(defaultShape(c))

	case "delete":
		if c.ShapeID == "" {
			return ErrMissingTarget
		}
		return s.RemoveShape(c.ShapeID)

	case "move":
		if c.ShapeID == "" {
			return ErrMissingTarget
		}
		return s.TranslateBy(c.ShapeID, c.DX, c.DY)

	case "resize":
		if c.ShapeID == "" {
			return ErrMissingTarget
		}
		corner := c.Corner
		if corner == "" {
			corner = transform.CornerSE
		}
		return s.ResizeTo(c.ShapeID, corner, c.TargetX, c.TargetY, c.PreserveAspect)

	case "recolor":
		if c.ShapeID == "" {
			return ErrMissingTarget
		}
		updates := map[string]any{}
		if c.Fill != "" {
			updates["fill"] = c.Fill
		}
		if c.Stroke != "" {
			updates["stroke"] = c.Stroke
		}
		if len(updates) == 0 {
			return nil
		}
		return s.UpdateFields(c.ShapeID, updates)

	case "editText":
		if c.ShapeID == "" {
			return ErrMissingTarget
		}
		return s.UpdateFields(c.ShapeID, map[string]any{"text": c.Text})

	case "reorder":
		if c.ShapeID == "" {
			return ErrMissingTarget
		}
		return s.SetZOrder(c.ShapeID, c.Order)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownTool, c.Tool)
	}
}

// ApplyAll runs a command batch as one gesture so the whole
// instruction undoes in a single step.
func ApplyAll(s *session.Session, cmds []Command) error {
	s.BeginGesture()
	defer s.CommitGesture()
	for i, c := range cmds {
		if err := Apply(s, c); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, c.Tool, err)
		}
	}
	return nil
}

func defaultShape(c Command) shape.Shape {
	sh := shape.Shape{
		ID:     uuid.NewString(),
		Type:   c.Kind,
		Fill:   c.Fill,
		Stroke: c.Stroke,
		Width:  c.Width,
		Height: c.Height,
	}
	if c.X != nil {
		sh.X = *c.X
	}
	if c.Y != nil {
		sh.Y = *c.Y
	}
	switch c.Kind {
	case shape.KindText:
		sh.Text = c.Text
		sh.FontSize = 16
		sh.Width, sh.Height = 0, 0
	case shape.KindLine:
		sh.X2 = sh.X + c.Width
		sh.Y2 = sh.Y + c.Height
		sh.Width, sh.Height = 0, 0
	case shape.KindPath:
		sh.Points = []shape.PathPoint{{X: sh.X, Y: sh.Y, MoveTo: true}}
		sh.Width, sh.Height = 0, 0
	default:
		if sh.Width == 0 {
			sh.Width = 100
		}
		if sh.Height == 0 {
			sh.Height = 100
		}
	}
	return sh
}
