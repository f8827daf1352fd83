package shape

import "errors"

var (
	ErrMissingID       = errors.New("shape id is required")
	ErrUnknownKind     = errors.New("unknown shape kind")
	ErrNegativeSize    = errors.New("shape size must be non-negative")
	ErrInvalidFontSize = errors.New("text font size must be positive")
	ErrEmptyPath       = errors.New("path requires at least one point")
	ErrInvalidOpacity  = errors.New("opacity must be within [0, 1]")
	ErrBadFieldValue   = errors.New("field value does not fit shape schema")
)
