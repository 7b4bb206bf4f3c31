package js

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/chrisuehlinger/vibebridge/dom"
	"github.com/chrisuehlinger/vibebridge/native"
)

// bindElementPrototype installs the reserved accessors and methods of
// Element.prototype.
func (b *Binder) bindElementPrototype(proto *goja.Object) {
	vm := b.vm

	b.defineGetter(proto, "nodeName", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(b.thisElement(call).TagName())
	})
	b.defineGetter(proto, "tagName", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(b.thisElement(call).TagName())
	})

	for _, prop := range native.ViewModuleProperties() {
		b.defineGetter(proto, prop.String(), func(call goja.FunctionCall) goja.Value {
			v, err := b.thisElement(call).ViewModuleProperty(prop)
			if err != nil {
				b.throw(err)
			}
			return vm.ToValue(v)
		})
	}

	b.defineGetter(proto, "children", func(call goja.FunctionCall) goja.Value {
		children := b.thisElement(call).Children()
		items := make([]interface{}, len(children))
		for i, c := range children {
			items[i] = b.BindElement(c)
		}
		return vm.NewArray(items...)
	})
	b.defineGetter(proto, "style", func(call goja.FunctionCall) goja.Value {
		return b.bindStyle(b.thisElement(call))
	})
	b.defineGetter(proto, "attributes", func(call goja.FunctionCall) goja.Value {
		el := b.thisElement(call)
		attrs := vm.NewObject()
		names := el.Attributes().Names()
		for _, name := range names {
			v, _ := el.GetAttribute(name)
			attrs.Set(name, v)
		}
		attrs.DefineDataProperty("length", vm.ToValue(len(names)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
		return attrs
	})

	proto.Set("getBoundingClientRect", func(call goja.FunctionCall) goja.Value {
		rect, err := b.thisElement(call).BoundingClientRect()
		if err != nil {
			b.throw(err)
		}
		obj := vm.NewObject()
		obj.Set("x", rect.X)
		obj.Set("y", rect.Y)
		obj.Set("width", rect.Width)
		obj.Set("height", rect.Height)
		obj.Set("top", rect.Top())
		obj.Set("right", rect.Right())
		obj.Set("bottom", rect.Bottom())
		obj.Set("left", rect.Left())
		return obj
	})

	proto.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		el := b.thisElement(call)
		if len(call.Arguments) < 1 {
			panic(vm.NewTypeError("Failed to execute 'hasAttribute' on 'Element': 1 argument required, but only 0 present"))
		}
		name := b.attributeName(call.Arguments[0], "hasAttribute")
		return vm.ToValue(el.HasAttribute(name))
	})
	proto.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		el := b.thisElement(call)
		if len(call.Arguments) != 2 {
			panic(vm.NewTypeError(fmt.Sprintf("Failed to execute 'setAttribute' on 'Element': 2 arguments required, but only %d present", len(call.Arguments))))
		}
		name := b.attributeName(call.Arguments[0], "setAttribute")
		if err := el.SetAttribute(name, call.Arguments[1].String()); err != nil {
			if dom.IsDOMError(err, dom.ConstraintError) {
				panic(vm.NewTypeError(fmt.Sprintf("Failed to execute 'setAttribute' on 'Element': '%s' is not a valid attribute name.", strings.ToLower(name))))
			}
			b.throw(err)
		}
		return goja.Null()
	})
	proto.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		el := b.thisElement(call)
		if len(call.Arguments) != 1 {
			panic(vm.NewTypeError(fmt.Sprintf("Failed to execute 'getAttribute' on 'Element': 1 argument required, but only %d present", len(call.Arguments))))
		}
		name := b.attributeName(call.Arguments[0], "getAttribute")
		if v, ok := el.GetAttribute(name); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	proto.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		el := b.thisElement(call)
		if len(call.Arguments) != 1 {
			panic(vm.NewTypeError(fmt.Sprintf("Failed to execute 'removeAttribute' on 'Element': 1 argument required, but only %d present", len(call.Arguments))))
		}
		name := b.attributeName(call.Arguments[0], "removeAttribute")
		if err := el.RemoveAttribute(name); err != nil {
			b.throw(err)
		}
		return goja.Null()
	})

	proto.Set("toBlob", b.toBlob)

	proto.Set("click", func(call goja.FunctionCall) goja.Value {
		b.forward(b.thisElement(call).Click())
		return goja.Undefined()
	})
	scrollTo := func(call goja.FunctionCall) goja.Value {
		el := b.thisElement(call)
		x, y, ok := b.scrollArgs(call)
		if !ok {
			// Missing coordinates keep the current offset.
			left, err := el.ViewModuleProperty(native.ScrollLeft)
			if err != nil {
				b.forward(err)
				return goja.Undefined()
			}
			top, _ := el.ViewModuleProperty(native.ScrollTop)
			x, y = x.or(left), y.or(top)
		}
		b.forward(el.ScrollTo(x.value, y.value))
		return goja.Undefined()
	}
	proto.Set("scroll", scrollTo)
	proto.Set("scrollTo", scrollTo)
	proto.Set("scrollBy", func(call goja.FunctionCall) goja.Value {
		el := b.thisElement(call)
		dx, dy, _ := b.scrollArgs(call)
		b.forward(el.ScrollBy(dx.or(0).value, dy.or(0).value))
		return goja.Undefined()
	})
}

// attributeName checks that v is a string attribute name.
func (b *Binder) attributeName(v goja.Value, op string) string {
	name, ok := v.Export().(string)
	if !ok {
		panic(b.vm.NewTypeError(fmt.Sprintf("Failed to execute '%s' on 'Element': name attribute is not valid.", op)))
	}
	return name
}

// forward throws err unless it only says that no native layer is attached,
// in which case the operation is a no-op.
func (b *Binder) forward(err error) {
	if err != nil && !isCapabilityUnavailable(err) {
		b.throw(err)
	}
}

// coordinate is an optional scroll coordinate.
type coordinate struct {
	value float64
	set   bool
}

func (c coordinate) or(fallback float64) coordinate {
	if c.set {
		return c
	}
	return coordinate{value: fallback, set: true}
}

// scrollArgs accepts (x, y) or ({left, top}). ok is false when either
// coordinate is missing.
func (b *Binder) scrollArgs(call goja.FunctionCall) (x, y coordinate, ok bool) {
	number := func(v goja.Value) coordinate {
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return coordinate{}
		}
		return coordinate{value: v.ToFloat(), set: true}
	}
	if len(call.Arguments) == 1 {
		if opts, isObj := call.Arguments[0].(*goja.Object); isObj {
			x, y = number(opts.Get("left")), number(opts.Get("top"))
			return x, y, x.set && y.set
		}
	}
	x, y = number(call.Argument(0)), number(call.Argument(1))
	return x, y, x.set && y.set
}

// bindStyle returns the element's style object. Properties read and write
// through the inline declaration; camelCase and kebab-case both work.
func (b *Binder) bindStyle(el *dom.Element) *goja.Object {
	if obj, ok := b.styles[el]; ok {
		return obj
	}
	obj := b.vm.NewDynamicObject(&styleObject{b: b, el: el})
	b.styles[el] = obj
	return obj
}

type styleObject struct {
	b  *Binder
	el *dom.Element
}

func (s *styleObject) Get(key string) goja.Value {
	vm, style := s.b.vm, s.el.Style()
	switch key {
	case "cssText":
		return vm.ToValue(style.CSSText())
	case "length":
		return vm.ToValue(style.Length())
	case "getPropertyValue":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(style.GetPropertyValue(call.Argument(0).String()))
		})
	case "setProperty":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			style.SetProperty(call.Argument(0).String(), valueString(call.Argument(1)))
			return goja.Undefined()
		})
	case "removeProperty":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(style.RemoveProperty(call.Argument(0).String()))
		})
	case "item":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(style.Item(int(call.Argument(0).ToInteger())))
		})
	}
	v := style.GetPropertyValue(key)
	if v == "" && s.b.inObjectPrototype(key) {
		return nil
	}
	return vm.ToValue(v)
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	style := s.el.Style()
	if key == "cssText" {
		style.SetCSSText(valueString(val))
		return true
	}
	style.SetProperty(key, valueString(val))
	return true
}

func (s *styleObject) Has(key string) bool {
	return s.el.Style().GetPropertyValue(key) != ""
}

func (s *styleObject) Delete(key string) bool {
	s.el.Style().RemoveProperty(key)
	return true
}

func (s *styleObject) Keys() []string {
	return s.el.Style().PropertyNames()
}

// valueString maps null and undefined to "" the way style setters do.
func valueString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
