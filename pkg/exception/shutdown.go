package exception

import "errors"

// Shutdown errors
var (
	// ErrShutdownInProgress is returned when a delay token is requested
	// after shutdown has already completed its drain.
	ErrShutdownInProgress = errors.New("shutdown: already in progress")
)
