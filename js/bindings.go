package js

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"weak"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vibebridge/dom"
)

// Binder exposes one document to one runtime. A node maps to one script
// object for as long as the engine keeps that object alive. Both caches hold
// the object weakly; once it is collected and its tree is detached, the
// subtree is disposed on the event loop.
type Binder struct {
	rt     *Runtime
	vm     *goja.Runtime
	doc    *dom.Document
	logger *zap.Logger

	nodes   map[*dom.Node]weak.Pointer[goja.Object]
	objects map[weak.Pointer[goja.Object]]*dom.Node
	styles  map[*dom.Element]*goja.Object

	nodeProto     *goja.Object
	elementProto  *goja.Object
	textProto     *goja.Object
	documentProto *goja.Object
	blobProto     *goja.Object
	blobKey       *goja.Symbol
	document      *goja.Object

	// inPrototype evaluates `key in proto` so script additions to the
	// prototype chain are honored.
	inPrototype goja.Callable

	pendingMu sync.Mutex
	pending   map[uuid.UUID]*completion
}

// Bind installs Node, Element, Text, Blob, document, customElements and
// flushUICommand into rt, all backed by doc.
func Bind(rt *Runtime, doc *dom.Document) (*Binder, error) {
	b := &Binder{
		rt:      rt,
		vm:      rt.vm,
		doc:     doc,
		logger:  rt.logger.Named("bind"),
		nodes:   make(map[*dom.Node]weak.Pointer[goja.Object]),
		objects: make(map[weak.Pointer[goja.Object]]*dom.Node),
		styles:  make(map[*dom.Element]*goja.Object),
		pending: make(map[uuid.UUID]*completion),
		blobKey: goja.NewSymbol("blob"),
	}
	err := rt.Do(func(vm *goja.Runtime) error {
		fn, err := vm.RunString("(function (o, k) { return k in o; })")
		if err != nil {
			return fmt.Errorf("js: compile prototype lookup: %w", err)
		}
		lookup, ok := goja.AssertFunction(fn)
		if !ok {
			return errors.New("js: prototype lookup is not callable")
		}
		b.inPrototype = lookup

		b.setupPrototypes()
		b.setupBlob()
		b.setupDocument()
		b.setupGlobals()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Document returns the bound document.
func (b *Binder) Document() *dom.Document {
	return b.doc
}

// Runtime returns the runtime the binder installed itself into.
func (b *Binder) Runtime() *Runtime {
	return b.rt
}

// Pending returns the number of async native calls awaiting completion.
func (b *Binder) Pending() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return len(b.pending)
}

// defineGetter installs a read-only accessor. Its setter ignores writes so
// assignments are no-ops even in strict code.
func (b *Binder) defineGetter(obj *goja.Object, name string, get func(goja.FunctionCall) goja.Value) {
	ignore := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	obj.DefineAccessorProperty(name, b.vm.ToValue(get), b.vm.ToValue(ignore), goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (b *Binder) newConstructor(name string, proto *goja.Object, construct func(goja.ConstructorCall) *goja.Object) *goja.Object {
	ctor := b.vm.ToValue(construct).ToObject(b.vm)
	ctor.Set("prototype", proto)
	proto.Set("constructor", ctor)
	b.vm.Set(name, ctor)
	return ctor
}

// setupPrototypes creates Node, Element and Text so instanceof works.
func (b *Binder) setupPrototypes() {
	vm := b.vm

	b.nodeProto = vm.NewObject()
	nodeCtor := b.newConstructor("Node", b.nodeProto, func(goja.ConstructorCall) *goja.Object {
		panic(vm.NewTypeError("Illegal constructor"))
	})
	nodeCtor.Set("ELEMENT_NODE", int(dom.ElementNode))
	nodeCtor.Set("TEXT_NODE", int(dom.TextNode))
	nodeCtor.Set("COMMENT_NODE", int(dom.CommentNode))
	nodeCtor.Set("DOCUMENT_NODE", int(dom.DocumentNode))
	b.bindNodePrototype(b.nodeProto)

	b.elementProto = vm.NewObject()
	b.elementProto.SetPrototype(b.nodeProto)
	b.newConstructor("Element", b.elementProto, func(call goja.ConstructorCall) *goja.Object {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("Illegal constructor"))
		}
		tag, ok := call.Arguments[0].Export().(string)
		if !ok {
			panic(vm.NewTypeError("Illegal constructor"))
		}
		el, err := b.doc.CreateElement(tag)
		if err != nil {
			b.throw(err)
		}
		return b.BindElement(el)
	})
	b.bindElementPrototype(b.elementProto)

	b.textProto = vm.NewObject()
	b.textProto.SetPrototype(b.nodeProto)
	b.newConstructor("Text", b.textProto, func(call goja.ConstructorCall) *goja.Object {
		data := ""
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) {
			data = call.Arguments[0].String()
		}
		return b.bindText(b.doc.CreateTextNode(data))
	})
	b.textProto.DefineAccessorProperty("data",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(b.thisText(call).Data())
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			t := b.thisText(call)
			if len(call.Arguments) > 0 {
				if err := t.SetData(call.Arguments[0].String()); err != nil {
					b.throw(err)
				}
			}
			return goja.Undefined()
		}), goja.FLAG_TRUE, goja.FLAG_TRUE)
	b.defineGetter(b.textProto, "length", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(b.thisText(call).Length())
	})
}

// bindNodePrototype installs the tree accessors and mutation methods
// shared by every node.
func (b *Binder) bindNodePrototype(proto *goja.Object) {
	vm := b.vm

	b.defineGetter(proto, "nodeType", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(int(b.thisNode(call).NodeType()))
	})
	b.defineGetter(proto, "nodeName", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(b.thisNode(call).NodeName())
	})
	b.defineGetter(proto, "parentNode", func(call goja.FunctionCall) goja.Value {
		return b.BindNode(b.thisNode(call).ParentNode())
	})
	b.defineGetter(proto, "parentElement", func(call goja.FunctionCall) goja.Value {
		if p := b.thisNode(call).ParentElement(); p != nil {
			return b.BindElement(p)
		}
		return goja.Null()
	})
	b.defineGetter(proto, "firstChild", func(call goja.FunctionCall) goja.Value {
		return b.BindNode(b.thisNode(call).FirstChild())
	})
	b.defineGetter(proto, "lastChild", func(call goja.FunctionCall) goja.Value {
		return b.BindNode(b.thisNode(call).LastChild())
	})
	b.defineGetter(proto, "previousSibling", func(call goja.FunctionCall) goja.Value {
		return b.BindNode(b.thisNode(call).PreviousSibling())
	})
	b.defineGetter(proto, "nextSibling", func(call goja.FunctionCall) goja.Value {
		return b.BindNode(b.thisNode(call).NextSibling())
	})
	b.defineGetter(proto, "childNodes", func(call goja.FunctionCall) goja.Value {
		children := b.thisNode(call).ChildNodes()
		items := make([]interface{}, len(children))
		for i, c := range children {
			items[i] = b.BindNode(c)
		}
		return vm.NewArray(items...)
	})
	b.defineGetter(proto, "isConnected", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(b.thisNode(call).IsConnected())
	})
	b.defineGetter(proto, "ownerDocument", func(call goja.FunctionCall) goja.Value {
		if b.thisNode(call).OwnerDocument() == nil {
			return goja.Null()
		}
		return b.document
	})
	proto.DefineAccessorProperty("textContent",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			n := b.thisNode(call)
			if n.NodeType() == dom.DocumentNode {
				return goja.Null()
			}
			return vm.ToValue(n.TextContent())
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			n := b.thisNode(call)
			if n.NodeType() == dom.TextNode && len(call.Arguments) > 0 {
				if err := (*dom.Text)(n).SetData(call.Arguments[0].String()); err != nil {
					b.throw(err)
				}
			}
			return goja.Undefined()
		}), goja.FLAG_TRUE, goja.FLAG_TRUE)

	proto.Set("hasChildNodes", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(b.thisNode(call).HasChildNodes())
	})
	proto.Set("contains", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(false)
		}
		return vm.ToValue(b.thisNode(call).Contains(b.nodeOf(call.Arguments[0])))
	})
	proto.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		n := b.thisNode(call)
		child := b.nodeArg(call, 0, "appendChild")
		if _, err := n.AppendChild(child); err != nil {
			b.throw(err)
		}
		return call.Arguments[0]
	})
	proto.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		n := b.thisNode(call)
		child := b.nodeArg(call, 0, "insertBefore")
		var ref *dom.Node
		if len(call.Arguments) > 1 {
			ref = b.nodeOf(call.Arguments[1])
		}
		if _, err := n.InsertBefore(child, ref); err != nil {
			b.throw(err)
		}
		return call.Arguments[0]
	})
	proto.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		n := b.thisNode(call)
		child := b.nodeArg(call, 0, "removeChild")
		if _, err := n.RemoveChild(child); err != nil {
			b.throw(err)
		}
		return call.Arguments[0]
	})
	proto.Set("remove", func(call goja.FunctionCall) goja.Value {
		b.thisNode(call).Remove()
		return goja.Undefined()
	})
}

// setupDocument builds the document object.
func (b *Binder) setupDocument() {
	vm := b.vm

	b.documentProto = vm.NewObject()
	b.documentProto.SetPrototype(b.nodeProto)
	b.newConstructor("Document", b.documentProto, func(goja.ConstructorCall) *goja.Object {
		panic(vm.NewTypeError("Illegal constructor"))
	})

	b.defineGetter(b.documentProto, "documentElement", func(goja.FunctionCall) goja.Value {
		return b.BindElement(b.doc.DocumentElement())
	})
	b.defineGetter(b.documentProto, "body", func(goja.FunctionCall) goja.Value {
		return b.BindElement(b.doc.Body())
	})
	b.documentProto.Set("createElement", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("Failed to execute 'createElement' on 'Document': 1 argument required, but only 0 present."))
		}
		tag, ok := call.Arguments[0].Export().(string)
		if !ok {
			panic(vm.NewTypeError("Illegal constructor"))
		}
		el, err := b.doc.CreateElement(tag)
		if err != nil {
			b.throw(err)
		}
		return b.BindElement(el)
	})
	b.documentProto.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		data := ""
		if len(call.Arguments) > 0 {
			data = call.Arguments[0].String()
		}
		return b.bindText(b.doc.CreateTextNode(data))
	})
	b.documentProto.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		if el := b.doc.GetElementByID(call.Arguments[0].String()); el != nil {
			return b.BindElement(el)
		}
		return goja.Null()
	})

	b.document = vm.NewObject()
	b.document.SetPrototype(b.documentProto)
	b.remember(b.doc.AsNode(), b.document)
	vm.Set("document", b.document)
}

// setupGlobals installs flushUICommand and customElements.
func (b *Binder) setupGlobals() {
	vm := b.vm

	vm.Set("flushUICommand", func(goja.FunctionCall) goja.Value {
		if err := b.doc.Flush(); err != nil {
			b.throw(err)
		}
		return goja.Undefined()
	})

	registry := vm.NewObject()
	registry.Set("define", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError(fmt.Sprintf("Failed to execute 'define' on 'CustomElementRegistry': 2 arguments required, but only %d present.", len(call.Arguments))))
		}
		tag, ok := call.Arguments[0].Export().(string)
		if !ok || tag == "" {
			panic(vm.NewTypeError("Failed to execute 'define' on 'CustomElementRegistry': name is not valid."))
		}
		upgrade, ok := goja.AssertFunction(call.Arguments[1])
		if !ok {
			panic(vm.NewTypeError("Failed to execute 'define' on 'CustomElementRegistry': parameter 2 is not a function."))
		}
		// The creator calls into this engine, so it only runs for this
		// binder's document, from script initiated createElement calls that
		// already hold the lock. Other documents sharing the registry get a
		// generic element.
		b.doc.Registry().Define(tag, func(doc *dom.Document, tagName string) *dom.Element {
			if doc != b.doc {
				return nil
			}
			el := doc.NewElement(tagName)
			if _, err := upgrade(goja.Undefined(), b.BindElement(el)); err != nil {
				b.logger.Warn("Custom element upgrade failed", zap.String("tag", tagName), zap.Error(err))
			}
			return el
		})
		return goja.Undefined()
	})
	registry.Set("get", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		_, ok := b.doc.Registry().Lookup(call.Arguments[0].String())
		return vm.ToValue(ok)
	})
	vm.Set("customElements", registry)
}

// BindNode returns the script object for n, or null.
func (b *Binder) BindNode(n *dom.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	switch n.NodeType() {
	case dom.ElementNode:
		return b.BindElement((*dom.Element)(n))
	case dom.TextNode:
		return b.bindText((*dom.Text)(n))
	case dom.DocumentNode:
		if n == b.doc.AsNode() {
			return b.document
		}
	}
	return goja.Null()
}

// BindElement returns the script object for el. Property access goes
// through an elementObject, see dispatch.go.
func (b *Binder) BindElement(el *dom.Element) *goja.Object {
	if el == nil {
		return nil
	}
	if obj := b.cached(el.AsNode()); obj != nil {
		return obj
	}
	obj := b.vm.NewDynamicObject(&elementObject{b: b, el: el})
	obj.SetPrototype(b.elementProto)
	b.remember(el.AsNode(), obj)
	return obj
}

func (b *Binder) bindText(t *dom.Text) *goja.Object {
	if obj := b.cached(t.AsNode()); obj != nil {
		return obj
	}
	obj := b.vm.NewObject()
	obj.SetPrototype(b.textProto)
	b.remember(t.AsNode(), obj)
	return obj
}

// cached returns the live script object for n, or nil.
func (b *Binder) cached(n *dom.Node) *goja.Object {
	if ref, ok := b.nodes[n]; ok {
		return ref.Value()
	}
	return nil
}

func (b *Binder) remember(n *dom.Node, obj *goja.Object) {
	ref := weak.Make(obj)
	b.nodes[n] = ref
	b.objects[ref] = n
	runtime.AddCleanup(obj, func(ref weak.Pointer[goja.Object]) {
		b.rt.eventLoop.queueGoFunc(func() { b.reclaim(n, ref) })
	}, ref)
}

// reclaim runs on the event loop after the engine collected n's object.
// The detached tree holding n is disposed once none of its nodes has a
// live object left. Connected nodes only lose their cache entry; their
// expandos stay on the node for the next object bound to it.
func (b *Binder) reclaim(n *dom.Node, ref weak.Pointer[goja.Object]) {
	delete(b.objects, ref)
	if b.nodes[n] == ref {
		delete(b.nodes, n)
		if n.NodeType() == dom.ElementNode {
			delete(b.styles, (*dom.Element)(n))
		}
	}

	root := n
	for root.ParentNode() != nil {
		root = root.ParentNode()
	}
	if root.NodeType() == dom.DocumentNode || root.Disposed() {
		return
	}
	live := false
	dom.Walk(root, func(m *dom.Node) bool {
		live = live || b.cached(m) != nil
		return !live
	})
	if live {
		return
	}
	if err := root.Dispose(); err != nil {
		b.logger.Warn("Dispose of reclaimed node failed",
			zap.Int32("nativeID", root.NativeID()), zap.Error(err))
		return
	}
	b.logger.Debug("Reclaimed detached node", zap.Int32("nativeID", root.NativeID()))
}

// nodeOf returns the node behind a script value, or nil.
func (b *Binder) nodeOf(v goja.Value) *dom.Node {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return b.objects[weak.Make(obj)]
}

func (b *Binder) thisNode(call goja.FunctionCall) *dom.Node {
	n := b.nodeOf(call.This)
	if n == nil {
		panic(b.vm.NewTypeError("Illegal invocation"))
	}
	return n
}

func (b *Binder) thisElement(call goja.FunctionCall) *dom.Element {
	n := b.nodeOf(call.This)
	if n == nil || n.NodeType() != dom.ElementNode {
		panic(b.vm.NewTypeError("Illegal invocation"))
	}
	return (*dom.Element)(n)
}

func (b *Binder) thisText(call goja.FunctionCall) *dom.Text {
	n := b.nodeOf(call.This)
	if n == nil || n.NodeType() != dom.TextNode {
		panic(b.vm.NewTypeError("Illegal invocation"))
	}
	return (*dom.Text)(n)
}

func (b *Binder) nodeArg(call goja.FunctionCall, i int, op string) *dom.Node {
	if len(call.Arguments) <= i {
		panic(b.vm.NewTypeError(fmt.Sprintf("Failed to execute '%s' on 'Node': %d argument required, but only %d present.", op, i+1, len(call.Arguments))))
	}
	n := b.nodeOf(call.Arguments[i])
	if n == nil {
		panic(b.vm.NewTypeError(fmt.Sprintf("Failed to execute '%s' on 'Node': parameter %d is not of type 'Node'.", op, i+1)))
	}
	return n
}

// throw raises err in script as a TypeError. DOM errors carry their
// message; anything else its full text.
func (b *Binder) throw(err error) {
	var de *dom.DOMError
	if errors.As(err, &de) {
		panic(b.vm.NewTypeError(de.Message))
	}
	panic(b.vm.NewTypeError(err.Error()))
}

// isCapabilityUnavailable reports whether err means no native layer is
// attached.
func isCapabilityUnavailable(err error) bool {
	return dom.IsDOMError(err, dom.CapabilityUnavailableError)
}
