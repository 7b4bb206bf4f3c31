package js

import (
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// setupBlob installs a minimal Blob: the constructor, size, type, slice,
// text and arrayBuffer.
func (b *Binder) setupBlob() {
	vm := b.vm

	b.blobProto = vm.NewObject()
	b.newConstructor("Blob", b.blobProto, func(call goja.ConstructorCall) *goja.Object {
		var data []byte
		if parts, ok := call.Argument(0).(*goja.Object); ok {
			length := parts.Get("length")
			if length == nil || goja.IsUndefined(length) {
				panic(vm.NewTypeError("Failed to construct 'Blob': The provided value cannot be converted to a sequence."))
			}
			for i := int64(0); i < length.ToInteger(); i++ {
				data = append(data, b.blobPart(parts.Get(strconv.FormatInt(i, 10)))...)
			}
		}
		typ := ""
		if opts, ok := call.Argument(1).(*goja.Object); ok {
			if t := opts.Get("type"); t != nil && !goja.IsUndefined(t) {
				typ = strings.ToLower(t.String())
			}
		}
		return b.newBlob(data, typ)
	})

	b.defineGetter(b.blobProto, "size", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(len(b.thisBlob(call).data))
	})
	b.defineGetter(b.blobProto, "type", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(b.thisBlob(call).typ)
	})
	b.blobProto.Set("arrayBuffer", func(call goja.FunctionCall) goja.Value {
		blob := b.thisBlob(call)
		promise, resolve, _ := vm.NewPromise()
		resolve(vm.NewArrayBuffer(append([]byte(nil), blob.data...)))
		return vm.ToValue(promise)
	})
	b.blobProto.Set("text", func(call goja.FunctionCall) goja.Value {
		blob := b.thisBlob(call)
		promise, resolve, _ := vm.NewPromise()
		resolve(string(blob.data))
		return vm.ToValue(promise)
	})
	b.blobProto.Set("slice", func(call goja.FunctionCall) goja.Value {
		blob := b.thisBlob(call)
		size := int64(len(blob.data))
		start := relativeIndex(call.Argument(0), 0, size)
		end := relativeIndex(call.Argument(1), size, size)
		if end < start {
			end = start
		}
		typ := ""
		if t := call.Argument(2); !goja.IsUndefined(t) {
			typ = strings.ToLower(t.String())
		}
		return b.newBlob(append([]byte(nil), blob.data[start:end]...), typ)
	})
}

// blobData is the Go side of a Blob, stored under the binder's symbol.
type blobData struct {
	data []byte
	typ  string
}

// newBlob wraps data in a script Blob.
func (b *Binder) newBlob(data []byte, typ string) *goja.Object {
	obj := b.vm.NewObject()
	obj.SetPrototype(b.blobProto)
	obj.DefineDataPropertySymbol(b.blobKey, b.vm.ToValue(&blobData{data: data, typ: typ}), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return obj
}

// blobOf returns the Go data behind v, or nil when v is not a Blob.
func (b *Binder) blobOf(v goja.Value) *blobData {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	inner := obj.GetSymbol(b.blobKey)
	if inner == nil {
		return nil
	}
	data, _ := inner.Export().(*blobData)
	return data
}

func (b *Binder) thisBlob(call goja.FunctionCall) *blobData {
	data := b.blobOf(call.This)
	if data == nil {
		panic(b.vm.NewTypeError("Illegal invocation"))
	}
	return data
}

// blobPart converts one constructor part to bytes.
func (b *Binder) blobPart(part goja.Value) []byte {
	if part == nil || goja.IsUndefined(part) {
		return nil
	}
	if blob := b.blobOf(part); blob != nil {
		return blob.data
	}
	switch v := part.Export().(type) {
	case goja.ArrayBuffer:
		return append([]byte(nil), v.Bytes()...)
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	}
	return []byte(part.String())
}

// relativeIndex resolves a slice index, counting negative values from the
// end and clamping to [0, size].
func relativeIndex(v goja.Value, fallback, size int64) int64 {
	if goja.IsUndefined(v) {
		return fallback
	}
	i := v.ToInteger()
	if i < 0 {
		i += size
	}
	return min(max(i, 0), size)
}
