package exception

import "errors"

// Engine errors
var (
	ErrEngineNil        = errors.New("engine: nil engine")
	ErrEngineInvalidCPU = errors.New("engine: invalid cpu index")
)
