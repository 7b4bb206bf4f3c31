// Package js hosts the goja script engine and binds the element tree into
// it. All engine access happens while holding the Runtime's lock; work that
// completes on other goroutines is queued back onto the event loop.
package js

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Runtime wraps a goja runtime with timers, an event loop and a console
// that writes to zap.
type Runtime struct {
	vm        *goja.Runtime
	logger    *zap.Logger
	window    *goja.Object
	timers    *timerManager
	eventLoop *eventLoop
	mu        sync.Mutex
	errors    []error
	onError   func(error)
}

// NewRuntime creates a runtime with console, timers and window globals.
func NewRuntime(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{
		vm:        goja.New(),
		logger:    logger.Named("js"),
		timers:    newTimerManager(),
		eventLoop: newEventLoop(),
	}

	r.setupConsole()
	r.setupTimers()
	r.setupWindow()

	return r
}

// VM returns the underlying goja runtime. Callers must hold the lock, see Do.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *zap.Logger {
	return r.logger
}

// SetOnError sets a callback for script errors.
func (r *Runtime) SetOnError(handler func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = handler
}

// Do runs fn with exclusive access to the engine.
func (r *Runtime) Do(fn func(vm *goja.Runtime) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("js: panic in engine call: %v", p)
			r.reportError(err)
		}
	}()
	return fn(r.vm)
}

// Execute runs JavaScript code and returns the result.
func (r *Runtime) Execute(code string) (result goja.Value, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script execution panic: %v", p)
			r.reportError(err)
		}
	}()

	result, err = r.vm.RunString(code)
	if err != nil {
		r.reportError(err)
	}
	return result, err
}

// ExecuteScript compiles and runs a script in sloppy mode. src names the
// script in stack traces.
func (r *Runtime) ExecuteScript(code, src string) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script compilation panic in %s: %v", src, p)
			r.reportError(err)
		}
	}()

	program, err := goja.Compile(src, code, false)
	if err != nil {
		r.reportError(err)
		return err
	}

	if _, err = r.vm.RunProgram(program); err != nil {
		r.reportError(err)
	}
	return err
}

// reportError records err. Callers hold the lock.
func (r *Runtime) reportError(err error) {
	r.errors = append(r.errors, err)
	r.logger.Warn("Script error", zap.Error(err))
	if r.onError != nil {
		r.onError(err)
	}
}

// Errors returns all errors that occurred during execution.
func (r *Runtime) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error{}, r.errors...)
}

// ClearErrors clears the error list.
func (r *Runtime) ClearErrors() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = r.errors[:0]
}

// RunEventLoop runs queued Go callbacks, microtasks and due timers. It
// returns true if more work is pending.
func (r *Runtime) RunEventLoop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eventLoop.runOnce(r)
}

// HasPendingWork reports timers, queued tasks, or async native calls that
// have not completed yet.
func (r *Runtime) HasPendingWork() bool {
	return r.timers.hasPending() || r.eventLoop.hasPending()
}

// RunUntilIdle pumps the event loop until nothing is pending or ctx ends.
func (r *Runtime) RunUntilIdle(ctx context.Context) error {
	for {
		r.RunEventLoop()
		if !r.HasPendingWork() {
			return nil
		}

		var (
			timer *time.Timer
			due   <-chan time.Time
		)
		if r.timers.hasPending() || r.eventLoop.hasRunnable() {
			timer = time.NewTimer(max(r.timers.nextDueTime(), time.Millisecond))
			due = timer.C
		}
		var err error
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-r.eventLoop.wake:
		case <-due:
		}
		if timer != nil {
			timer.Stop()
		}
		if err != nil {
			return err
		}
	}
}

// drainJobs settles promise reactions queued by Go-side resolve calls.
// Callers hold the lock.
func (r *Runtime) drainJobs() {
	if _, err := r.vm.RunString(""); err != nil {
		r.reportError(err)
	}
}

// setupConsole installs console methods that log through zap.
func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()
	logFunc := func(level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			r.logger.Log(level, "[JS Console]", zap.String("message", formatArgs(call.Arguments)))
			return goja.Undefined()
		}
	}

	console.Set("log", logFunc(zap.InfoLevel))
	console.Set("info", logFunc(zap.InfoLevel))
	console.Set("warn", logFunc(zap.WarnLevel))
	console.Set("error", logFunc(zap.ErrorLevel))
	console.Set("debug", logFunc(zap.DebugLevel))

	console.Set("assert", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 || !call.Arguments[0].ToBoolean() {
			msg := "Assertion failed"
			if len(call.Arguments) > 1 {
				msg += ": " + formatArgs(call.Arguments[1:])
			}
			r.logger.Error("[JS Console]", zap.String("message", msg))
		}
		return goja.Undefined()
	})

	counts := make(map[string]int)
	console.Set("count", func(call goja.FunctionCall) goja.Value {
		label := labelArg(call)
		counts[label]++
		r.logger.Info("[JS Console]", zap.String("label", label), zap.Int("count", counts[label]))
		return goja.Undefined()
	})

	times := make(map[string]time.Time)
	console.Set("time", func(call goja.FunctionCall) goja.Value {
		times[labelArg(call)] = time.Now()
		return goja.Undefined()
	})
	console.Set("timeEnd", func(call goja.FunctionCall) goja.Value {
		label := labelArg(call)
		if start, ok := times[label]; ok {
			r.logger.Info("[JS Console]", zap.String("label", label), zap.Duration("elapsed", time.Since(start)))
			delete(times, label)
		}
		return goja.Undefined()
	})

	r.vm.Set("console", console)
}

func labelArg(call goja.FunctionCall) string {
	if len(call.Arguments) > 0 {
		return call.Arguments[0].String()
	}
	return "default"
}

// setupTimers creates setTimeout, setInterval, clearTimeout, clearInterval
// and requestAnimationFrame.
func (r *Runtime) setupTimers() {
	schedule := func(interval bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 1 {
				return goja.Undefined()
			}
			callback, ok := goja.AssertFunction(call.Arguments[0])
			if !ok {
				return goja.Undefined()
			}

			delay := int64(0)
			if len(call.Arguments) > 1 {
				delay = call.Arguments[1].ToInteger()
			}
			if delay < 0 {
				delay = 0
			}

			var args []goja.Value
			if len(call.Arguments) > 2 {
				args = call.Arguments[2:]
			}

			if interval {
				// Minimum interval of 4ms.
				delay = max(delay, 4)
				return r.vm.ToValue(r.timers.setInterval(callback, time.Duration(delay)*time.Millisecond, args))
			}
			return r.vm.ToValue(r.timers.setTimeout(callback, time.Duration(delay)*time.Millisecond, args))
		}
	}
	clearTimer := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			r.timers.clearTimer(int(call.Arguments[0].ToInteger()))
		}
		return goja.Undefined()
	}

	r.vm.Set("setTimeout", schedule(false))
	r.vm.Set("setInterval", schedule(true))
	r.vm.Set("clearTimeout", clearTimer)
	r.vm.Set("clearInterval", clearTimer)

	// Frames are approximated with a 16ms timeout.
	r.vm.Set("requestAnimationFrame", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			return goja.Undefined()
		}
		timestamp := float64(time.Now().UnixNano()) / 1e6
		id := r.timers.setTimeout(callback, 16*time.Millisecond, []goja.Value{r.vm.ToValue(timestamp)})
		return r.vm.ToValue(id)
	})
	r.vm.Set("cancelAnimationFrame", clearTimer)
}

// setupWindow aliases window, self and globalThis to the global object.
func (r *Runtime) setupWindow() {
	window := r.vm.GlobalObject()
	r.vm.Set("window", window)
	r.vm.Set("self", window)
	r.vm.Set("globalThis", window)

	window.Set("devicePixelRatio", 1.0)

	performance := r.vm.NewObject()
	startTime := time.Now()
	performance.Set("now", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(float64(time.Since(startTime).Nanoseconds()) / 1e6)
	})
	performance.Set("timeOrigin", float64(startTime.UnixNano())/1e6)
	r.vm.Set("performance", performance)

	r.vm.Set("queueMicrotask", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		if callback, ok := goja.AssertFunction(call.Arguments[0]); ok {
			r.eventLoop.queueMicrotask(callback, nil)
		}
		return goja.Undefined()
	})

	r.window = window
}

// formatArgs formats function call arguments for console output.
func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	return strings.Join(parts, " ")
}

// formatValue formats a single value for output.
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	return v.String()
}
