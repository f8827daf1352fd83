package op

import "errors"

var (
	ErrMissingOperationID = errors.New("operation id is required")
	ErrMissingClientID    = errors.New("client id is required")
	ErrMissingShape       = errors.New("operation requires a shape payload")
	ErrMissingShapeID     = errors.New("update requires a shape id")
	ErrEmptyUpdate        = errors.New("update carries no fields")
	ErrUnpairedUpdate     = errors.New("updates and previousValues must cover the same fields")
	ErrImmutableField     = errors.New("field is immutable")
	ErrUnknownType        = errors.New("unknown operation type")
)
