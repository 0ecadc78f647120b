//go:build linux

package engine

import (
	"golang.org/x/sys/unix"

	"botnode/pkg/exception"
)

// pinToCPU restricts the calling thread to one logical CPU. The caller
// must already hold runtime.LockOSThread.
func pinToCPU(cpu int) error {
	if cpu < 0 {
		return exception.ErrEngineInvalidCPU
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
