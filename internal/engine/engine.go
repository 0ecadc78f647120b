// Package engine defines the unit of independently scheduled work and the
// launcher that binds one engine to a CPU-pinned OS thread.
package engine

import (
	"runtime"

	"github.com/yanun0323/logs"

	"botnode/pkg/exception"
	"botnode/pkg/ring"
	"botnode/pkg/shutdown"
)

// Engine is a capability contract: a start routine that runs until it
// observes shutdown, plus a factory for fresh readers of its output ring.
type Engine[T any] interface {
	Name() string
	Start(sd *shutdown.Shutdown) error
	DataRx() *ring.Receiver[T]
}

// Handle is returned by Start. Launch is fire-and-forget; the handle
// carries no result.
type Handle struct{}

// Start launches the engine on its own goroutine, locks that goroutine to
// an OS thread and best-effort pins the thread to the given logical CPU.
// An engine error is logged and ends the engine's task only; it never
// crashes the process.
func Start[T any](cpu int, e Engine[T], sd *shutdown.Shutdown) Handle {
	if e == nil {
		logs.Errorf("engine launch: %v", exception.ErrEngineNil)
		return Handle{}
	}
	go func() {
		runtime.LockOSThread()
		if err := pinToCPU(cpu); err != nil {
			logs.Warnf("%s engine: pin to cpu %d: %v", e.Name(), cpu, err)
		}
		logs.Infof("starting %s engine on cpu %d", e.Name(), cpu)
		if err := e.Start(sd); err != nil {
			logs.Errorf("%s engine terminated: %v", e.Name(), err)
			return
		}
		logs.Infof("%s engine stopped", e.Name())
	}()
	return Handle{}
}
