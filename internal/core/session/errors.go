package session

import "errors"

var (
	ErrSessionClosed = errors.New("session is closed")
	ErrShapeNotFound = errors.New("shape not found")
	ErrGestureOpen   = errors.New("gesture still open")
)
