// Package op defines the invertible, idempotent operations that mutate
// a document's shape collection, and the deterministic fold that
// materializes a collection from an operation history.
package op

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/sketchsync/sketchsync/internal/core/shape"
)

// Type discriminates the operation union on the wire.
type Type string

const (
	TypeAddShape    Type = "addShape"
	TypeUpdateShape Type = "updateShape"
	TypeDeleteShape Type = "deleteShape"
)

// Operation is an atomic, invertible mutation of the shape collection.
// The id is client-generated and globally unique; the store
// deduplicates on it, which is what makes re-sending a batch safe.
type Operation struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	ClientID  string `json:"clientId"`
	Timestamp int64  `json:"timestamp"` // client wall clock, unix millis

	// addShape / deleteShape carry the full shape; deleteShape keeps it
	// so the operation can be inverted without re-reading history.
	Shape *shape.Shape `json:"shape,omitempty"`

	// updateShape carries paired partial-field maps over the same keys.
	ShapeID  string         `json:"shapeId,omitempty"`
	Updates  map[string]any `json:"updates,omitempty"`
	Previous map[string]any `json:"previousValues,omitempty"`
}

// NewAdd builds an addShape operation for the given client.
func NewAdd(clientID string, s shape.Shape) Operation {
	return Operation{
		ID:        uuid.NewString(),
		Type:      TypeAddShape,
		ClientID:  clientID,
		Timestamp: time.Now().UnixMilli(),
		Shape:     ptr(s.Clone()),
	}
}

// NewDelete builds a deleteShape operation carrying the removed shape.
func NewDelete(clientID string, s shape.Shape) Operation {
	return Operation{
		ID:        uuid.NewString(),
		Type:      TypeDeleteShape,
		ClientID:  clientID,
		Timestamp: time.Now().UnixMilli(),
		Shape:     ptr(s.Clone()),
	}
}

// NewUpdate builds an updateShape operation. updates and previous must
// cover exactly the same field keys; Validate enforces this.
func NewUpdate(clientID, shapeID string, updates, previous map[string]any) Operation {
	return Operation{
		ID:        uuid.NewString(),
		Type:      TypeUpdateShape,
		ClientID:  clientID,
		Timestamp: time.Now().UnixMilli(),
		ShapeID:   shapeID,
		Updates:   updates,
		Previous:  previous,
	}
}

// Validate checks the operation against the wire schema. Operations
// that parse as JSON but fail here are rejected before they reach the
// fold or the store.
func (o Operation) Validate() error {
	if o.ID == "" {
		return ErrMissingOperationID
	}
	if o.ClientID == "" {
		return ErrMissingClientID
	}
	switch o.Type {
	case TypeAddShape, TypeDeleteShape:
		if o.Shape == nil {
			return ErrMissingShape
		}
		return o.Shape.Validate()
	case TypeUpdateShape:
		if o.ShapeID == "" {
			return ErrMissingShapeID
		}
		if len(o.Updates) == 0 {
			return ErrEmptyUpdate
		}
		if len(o.Updates) != len(o.Previous) {
			return ErrUnpairedUpdate
		}
		for k := range o.Updates {
			if k == "id" || k == "type" {
				return fmt.Errorf("%w: %q", ErrImmutableField, k)
			}
			if _, ok := o.Previous[k]; !ok {
				return ErrUnpairedUpdate
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, o.Type)
	}
}

// Invert returns the operation that undoes o. The inverse gets a fresh
// id and timestamp; attribution stays with the given client, the
// session performing the undo.
func (o Operation) Invert() Operation {
	switch o.Type {
	case TypeAddShape:
		return NewDelete(o.ClientID, *o.Shape)
	case TypeDeleteShape:
		return NewAdd(o.ClientID, *o.Shape)
	default:
		return NewUpdate(o.ClientID, o.ShapeID, clone(o.Previous), clone(o.Updates))
	}
}

// Apply folds one operation into the collection and returns the new
// collection; the input is never mutated. Add of an existing id,
// update of a missing id and delete of a missing id are all benign
// no-ops, so folding a gap-free history is deterministic and
// re-applying a duplicate changes nothing.
func Apply(collection []shape.Shape, o Operation) ([]shape.Shape, error) {
	switch o.Type {
	case TypeAddShape:
		for _, s := range collection {
			if s.ID == o.Shape.ID {
				return collection, nil
			}
		}
		out := make([]shape.Shape, len(collection), len(collection)+1)
		copy(out, collection)
		return append(out, o.Shape.Clone()), nil

	case TypeDeleteShape:
		out := make([]shape.Shape, 0, len(collection))
		for _, s := range collection {
			if s.ID != o.Shape.ID {
				out = append(out, s)
			}
		}
		return out, nil

	case TypeUpdateShape:
		out := make([]shape.Shape, len(collection))
		copy(out, collection)
		for i, s := range out {
			if s.ID != o.ShapeID {
				continue
			}
			merged, err := s.Merge(o.Updates)
			if err != nil {
				return collection, fmt.Errorf("apply update %s: %w", o.ID, err)
			}
			out[i] = merged
			return out, nil
		}
		// Target already gone, e.g. removed by a concurrent delete.
		return collection, nil

	default:
		return collection, fmt.Errorf("%w: %q", ErrUnknownType, o.Type)
	}
}

// Diff compares two materialized snapshots of the same shape and
// returns the minimal paired field maps for an updateShape operation.
// A field absent on one side is recorded as nil on that side.
func Diff(before, after shape.Shape) (updates, previous map[string]any, err error) {
	bm, err := before.FieldMap()
	if err != nil {
		return nil, nil, err
	}
	am, err := after.FieldMap()
	if err != nil {
		return nil, nil, err
	}
	updates = make(map[string]any)
	previous = make(map[string]any)
	for k := range union(bm, am) {
		if k == "id" || k == "type" {
			continue
		}
		bv, av := bm[k], am[k]
		if sameJSON(bv, av) {
			continue
		}
		updates[k] = av
		previous[k] = bv
	}
	return updates, previous, nil
}

// Checksum digests the canonical JSON of the collection in z-order.
// Two sessions that have consumed the same log prefix produce the same
// checksum; a mismatch is a convergence bug.
func Checksum(collection []shape.Shape) uint64 {
	d := xxhash.New()
	for _, s := range collection {
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		_, _ = d.Write(data)
		_, _ = d.Write([]byte{'\n'})
	}
	return d.Sum64()
}

func sameJSON(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func union(a, b map[string]any) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func ptr(s shape.Shape) *shape.Shape { return &s }
