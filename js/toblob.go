package js

import (
	"errors"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vibebridge/dom"
	"github.com/chrisuehlinger/vibebridge/handle"
)

// completion is an in-flight toBlob call. resolve and reject hold the
// promise callbacks until the native layer answers.
type completion struct {
	token   uuid.UUID
	resolve *handle.Handle
	reject  *handle.Handle
}

func (c *completion) release() {
	c.resolve.Release()
	c.reject.Release()
}

func (c *completion) settle(err error, value goja.Value, reason goja.Value) {
	if err != nil {
		c.reject.Value().(func(goja.Value))(reason)
		return
	}
	c.resolve.Value().(func(goja.Value))(value)
}

// toBlob implements Element.prototype.toBlob(devicePixelRatio). The promise
// settles on the event loop once the native layer calls back.
func (b *Binder) toBlob(call goja.FunctionCall) goja.Value {
	vm := b.vm
	el := b.thisElement(call)

	dpr := 1.0
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		switch v := arg.Export().(type) {
		case int64:
			dpr = float64(v)
		case float64:
			dpr = v
		default:
			panic(vm.NewTypeError("Failed to export blob: parameter 1 (devicePixelRatio) is not a number."))
		}
	}
	if !el.CanExportBlob() {
		panic(vm.NewTypeError("Failed to export blob: native method (toBlob) is not registered."))
	}

	promise, resolve, reject := vm.NewPromise()
	arena := b.doc.Arena()
	c := &completion{
		token:   uuid.New(),
		resolve: arena.New(func(v goja.Value) { resolve(v) }),
		reject:  arena.New(func(v goja.Value) { reject(v) }),
	}

	b.pendingMu.Lock()
	b.pending[c.token] = c
	b.pendingMu.Unlock()
	b.rt.eventLoop.hold()

	if err := el.ToBlob(c.token, dpr, b.completeBlob); err != nil {
		if b.take(c.token) != nil {
			c.release()
			b.rt.eventLoop.release()
		}
		b.throw(err)
	}
	b.logger.Debug("Blob export started",
		zap.Stringer("token", c.token),
		zap.Int32("target", el.NativeID()),
		zap.Float64("devicePixelRatio", dpr))
	return vm.ToValue(promise)
}

// take removes and returns the completion for token, or nil.
func (b *Binder) take(token uuid.UUID) *completion {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	c, ok := b.pending[token]
	if !ok {
		return nil
	}
	delete(b.pending, token)
	return c
}

// completeBlob is the native callback. It may run on any goroutine; the
// promise is settled on the event loop.
func (b *Binder) completeBlob(token uuid.UUID, contextID int32, err error, data []byte) {
	b.rt.eventLoop.queueGoFunc(func() {
		c := b.take(token)
		if c == nil {
			b.logger.Warn("Blob completion for unknown token",
				zap.Stringer("token", token),
				zap.Int32("contextId", contextID))
			return
		}
		defer b.rt.eventLoop.release()
		defer c.release()

		if err != nil {
			b.logger.Debug("Blob export failed", zap.Stringer("token", token), zap.Error(err))
			c.settle(err, nil, b.nativeError(err))
			return
		}
		c.settle(nil, b.newBlob(data, "image/png"), nil)
	})
}

// nativeError builds the rejection reason for a failed native call: an
// Error named after the DOMError kind, NativeOperationError by default.
func (b *Binder) nativeError(err error) goja.Value {
	name, msg := dom.NativeOperationError, err.Error()
	var de *dom.DOMError
	if errors.As(err, &de) {
		name, msg = de.Name, de.Message
	}
	reason, nerr := b.vm.New(b.vm.Get("Error"), b.vm.ToValue(msg))
	if nerr != nil {
		return b.vm.ToValue(msg)
	}
	_ = reason.Set("name", name)
	return reason
}
