package js

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vibebridge/dom"
)

// propertyKind classifies a property key on an element object.
type propertyKind int

const (
	// reservedAccessor keys live on the prototype chain. Reads go to the
	// prototype with the element as receiver; writes are ignored.
	reservedAccessor propertyKind = iota
	// eventHandlerSlot keys start with "on" and are stored per event type.
	eventHandlerSlot
	// expando keys are plain script fields kept as retained handles.
	expando
)

func (k propertyKind) String() string {
	switch k {
	case reservedAccessor:
		return "reserved"
	case eventHandlerSlot:
		return "event-handler"
	case expando:
		return "expando"
	}
	return "unknown"
}

// elementObject is the goja.DynamicObject behind every element.
type elementObject struct {
	b  *Binder
	el *dom.Element
}

var _ goja.DynamicObject = (*elementObject)(nil)

func (o *elementObject) classify(key string) propertyKind {
	if o.b.inElementPrototype(key) {
		return reservedAccessor
	}
	if len(key) > 2 && strings.HasPrefix(key, "on") {
		return eventHandlerSlot
	}
	return expando
}

func (o *elementObject) Get(key string) goja.Value {
	switch o.classify(key) {
	case eventHandlerSlot:
		if h := o.el.EventHandler(key[2:]); h != nil {
			return h.Value().(goja.Value)
		}
		return goja.Null()
	case expando:
		if h := o.el.Property(key); h != nil {
			return h.Value().(goja.Value)
		}
	}
	return nil
}

func (o *elementObject) Set(key string, val goja.Value) bool {
	switch o.classify(key) {
	case eventHandlerSlot:
		if val == nil || goja.IsNull(val) || goja.IsUndefined(val) {
			return o.el.SetEventHandler(key[2:], nil) == nil
		}
		h := o.b.doc.Arena().New(val)
		defer h.Release()
		return o.el.SetEventHandler(key[2:], h) == nil
	case expando:
		h := o.b.doc.Arena().New(val)
		defer h.Release()
		if err := o.el.SetProperty(key, h); err != nil {
			o.b.logger.Debug("Dropping property on disposed element", zap.String("key", key))
			return false
		}
	}
	return true
}

func (o *elementObject) Has(key string) bool {
	switch o.classify(key) {
	case eventHandlerSlot:
		return o.el.EventHandler(key[2:]) != nil
	case expando:
		return o.el.HasProperty(key)
	}
	return false
}

func (o *elementObject) Delete(key string) bool {
	switch o.classify(key) {
	case eventHandlerSlot:
		return o.el.SetEventHandler(key[2:], nil) == nil
	case expando:
		o.el.DeleteProperty(key)
	}
	return true
}

func (o *elementObject) Keys() []string {
	keys := o.el.PropertyKeys()
	for _, t := range o.el.HandlerTypes() {
		keys = append(keys, "on"+t)
	}
	return keys
}

// inElementPrototype reports whether key resolves on Element.prototype or
// anything it inherits from.
func (b *Binder) inElementPrototype(key string) bool {
	return b.inPrototypeChain(b.elementProto, key)
}

func (b *Binder) inObjectPrototype(key string) bool {
	proto := b.vm.Get("Object").ToObject(b.vm).Get("prototype").ToObject(b.vm)
	return b.inPrototypeChain(proto, key)
}

func (b *Binder) inPrototypeChain(proto *goja.Object, key string) bool {
	v, err := b.inPrototype(goja.Undefined(), proto, b.vm.ToValue(key))
	if err != nil {
		b.logger.Warn("Prototype lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return v.ToBoolean()
}
