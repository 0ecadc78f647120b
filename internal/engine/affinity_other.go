//go:build !linux

package engine

import "botnode/pkg/exception"

// pinToCPU is a no-op off Linux; the goroutine stays locked to its OS
// thread but the kernel places the thread freely.
func pinToCPU(cpu int) error {
	if cpu < 0 {
		return exception.ErrEngineInvalidCPU
	}
	return nil
}
