package exception

import "errors"

// Connection errors
var (
	ErrConnectionClose = errors.New("connection closed")
	ErrFrameTooLarge   = errors.New("frame exceeds max size")
	ErrInvalidFrame    = errors.New("invalid frame")
)
