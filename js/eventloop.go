package js

import (
	"sync"

	"github.com/dop251/goja"
)

// task represents a queued callback in the event loop.
type task struct {
	callback goja.Callable
	args     []goja.Value
}

// eventLoop holds microtasks and Go callbacks posted from other
// goroutines. Outstanding async native calls keep the loop alive through
// hold/release.
type eventLoop struct {
	microtasks []task
	goFuncs    []func()
	holds      int
	mu         sync.Mutex

	// wake is signalled whenever a Go callback is queued.
	wake chan struct{}
}

func newEventLoop() *eventLoop {
	return &eventLoop{wake: make(chan struct{}, 1)}
}

// queueMicrotask adds a microtask.
func (el *eventLoop) queueMicrotask(callback goja.Callable, args []goja.Value) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.microtasks = append(el.microtasks, task{callback: callback, args: args})
}

// queueGoFunc schedules fn to run on the loop with the engine locked. It is
// safe to call from any goroutine.
func (el *eventLoop) queueGoFunc(fn func()) {
	el.mu.Lock()
	el.goFuncs = append(el.goFuncs, fn)
	el.mu.Unlock()

	select {
	case el.wake <- struct{}{}:
	default:
	}
}

// hold marks an outstanding async call.
func (el *eventLoop) hold() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.holds++
}

// release ends an outstanding async call.
func (el *eventLoop) release() {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.holds > 0 {
		el.holds--
	}
}

// runOnce runs every queued Go callback and microtask, then due timers.
// Callers hold the runtime lock.
func (el *eventLoop) runOnce(r *Runtime) bool {
	el.mu.Lock()
	funcs := el.goFuncs
	el.goFuncs = nil
	el.mu.Unlock()
	for _, fn := range funcs {
		fn()
	}
	if len(funcs) > 0 {
		r.drainJobs()
	}

	for {
		el.mu.Lock()
		if len(el.microtasks) == 0 {
			el.mu.Unlock()
			break
		}
		t := el.microtasks[0]
		el.microtasks = el.microtasks[1:]
		el.mu.Unlock()

		if _, err := t.callback(goja.Undefined(), t.args...); err != nil {
			r.reportError(err)
		}
	}

	r.timers.process(r)

	return el.hasPending() || r.timers.hasPending()
}

// hasRunnable reports queued work that can run right now.
func (el *eventLoop) hasRunnable() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.microtasks) > 0 || len(el.goFuncs) > 0
}

// hasPending reports queued work or outstanding async calls.
func (el *eventLoop) hasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.microtasks) > 0 || len(el.goFuncs) > 0 || el.holds > 0
}
