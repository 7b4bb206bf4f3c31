package dom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/chrisuehlinger/vibebridge/handle"
	"github.com/chrisuehlinger/vibebridge/native"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// Element represents an element in the DOM tree.
// Element inherits from Node and provides element-specific properties and methods.
type Element Node

// elementData holds data specific to Element nodes.
type elementData struct {
	tagName    string
	attributes *AttributeTable
	style      *StyleDeclaration

	// Script-defined fields. Never attributes, never sent to native.
	properties    map[string]*handle.Handle
	propertyOrder []string

	// on* handlers keyed by event type, and the types already announced
	// to the native side.
	handlers  map[string]*handle.Handle
	listening map[string]bool
}

func (d *Document) newElement(tagName string, id int32) *Element {
	n := newNode(ElementNode, tagName, d, id)
	n.elementData = &elementData{
		tagName:    tagName,
		attributes: NewAttributeTable(),
		properties: make(map[string]*handle.Handle),
		handlers:   make(map[string]*handle.Handle),
		listening:  make(map[string]bool),
	}
	e := (*Element)(n)
	e.elementData.style = newStyleDeclaration(e)
	return e
}

// AsNode returns the underlying Node.
func (e *Element) AsNode() *Node {
	return (*Node)(e)
}

// NodeType returns ElementNode (1).
func (e *Element) NodeType() NodeType {
	return ElementNode
}

// TagName returns the tag name in uppercase.
func (e *Element) TagName() string {
	return strings.ToUpper(e.elementData.tagName)
}

// LocalName returns the tag name in lowercase.
func (e *Element) LocalName() string {
	return strings.ToLower(e.elementData.tagName)
}

// NativeID returns the identifier the native layer knows this element by.
func (e *Element) NativeID() int32 {
	return e.nativeID
}

// IsConnected returns true if the element is in a document tree.
func (e *Element) IsConnected() bool {
	return e.AsNode().IsConnected()
}

// Document returns the owning document.
func (e *Element) Document() *Document {
	return e.ownerDoc
}

// Attributes returns the attribute table.
func (e *Element) Attributes() *AttributeTable {
	return e.elementData.attributes
}

// Style returns the inline style declaration.
func (e *Element) Style() *StyleDeclaration {
	return e.elementData.style
}

// Children returns the element children in document order.
func (e *Element) Children() []*Element {
	var children []*Element
	for c := e.firstChild; c != nil; c = c.nextSibling {
		if c.nodeType == ElementNode {
			children = append(children, (*Element)(c))
		}
	}
	return children
}

// TextContent joins the text of all descendants.
func (e *Element) TextContent() string {
	return e.AsNode().TextContent()
}

// SetTextContent is accepted and ignored; element text is only readable.
func (e *Element) SetTextContent(string) {}

// Id returns the id attribute value.
func (e *Element) Id() string {
	return e.idAttribute()
}

func (e *Element) idAttribute() string {
	return e.elementData.attributes.Get("id").String()
}

// SetAttribute stores value under the lower-cased name, updates the id
// index when the id changes, and queues a set-property command.
func (e *Element) SetAttribute(name, value string) error {
	if e.disposed {
		return ErrInvalidState("The element has been disposed.")
	}
	name = strings.ToLower(name)
	if isNumberIndex(name) {
		return ErrConstraint(fmt.Sprintf("'%s' is not a valid attribute name.", name))
	}

	// h stands for the caller's reference and goes away with the call.
	h := e.ownerDoc.documentData.arena.New(value)
	defer h.Release()

	old, err := e.elementData.attributes.Set(name, h)
	if err != nil {
		return err
	}
	e.didModifyAttribute(name, old, h)
	old.Release()

	e.AsNode().addCommand(uicommand.SetProperty(e.nativeID, name, value))
	return nil
}

// GetAttribute returns the attribute value and whether it is present.
func (e *Element) GetAttribute(name string) (string, bool) {
	h := e.elementData.attributes.Get(name)
	if h == nil {
		return "", false
	}
	return h.String(), true
}

// HasAttribute reports whether the attribute is present.
func (e *Element) HasAttribute(name string) bool {
	return e.elementData.attributes.Has(name)
}

// RemoveAttribute removes the attribute and queues remove-property. Absent
// names are a no-op.
func (e *Element) RemoveAttribute(name string) error {
	if e.disposed {
		return ErrInvalidState("The element has been disposed.")
	}
	name = strings.ToLower(name)
	attrs := e.elementData.attributes
	if !attrs.Has(name) {
		return nil
	}

	old := attrs.Get(name).Retain()
	attrs.Remove(name)
	e.didModifyAttribute(name, old, nil)
	old.Release()

	e.AsNode().addCommand(uicommand.RemoveProperty(e.nativeID, name))
	return nil
}

func (e *Element) didModifyAttribute(name string, oldValue, newValue *handle.Handle) {
	if name == "id" {
		e.beforeUpdateID(oldValue, newValue)
	}
	e.ownerDoc.notifyAttributeMutation(e.AsNode(), name, oldValue.String())
}

func (e *Element) beforeUpdateID(oldValue, newValue *handle.Handle) {
	oldID, newID := oldValue.String(), newValue.String()
	if oldID == newID || !e.IsConnected() {
		return
	}
	if oldID != "" {
		e.ownerDoc.removeElementByID(oldID, e)
	}
	if newID != "" {
		e.ownerDoc.addElementByID(newID, e)
	}
}

// SetProperty stores a script-defined field. The element retains h and
// releases whatever it replaces.
func (e *Element) SetProperty(key string, h *handle.Handle) error {
	if e.disposed {
		return ErrInvalidState("The element has been disposed.")
	}
	ed := e.elementData
	old, exists := ed.properties[key]
	if !exists {
		ed.propertyOrder = append(ed.propertyOrder, key)
	}
	ed.properties[key] = h.Retain()
	old.Release()
	return nil
}

// Property returns the handle stored under key, or nil.
func (e *Element) Property(key string) *handle.Handle {
	return e.elementData.properties[key]
}

// HasProperty reports whether a script-defined field exists.
func (e *Element) HasProperty(key string) bool {
	_, ok := e.elementData.properties[key]
	return ok
}

// DeleteProperty removes a script-defined field.
func (e *Element) DeleteProperty(key string) bool {
	ed := e.elementData
	h, ok := ed.properties[key]
	if !ok {
		return false
	}
	delete(ed.properties, key)
	for i, k := range ed.propertyOrder {
		if k == key {
			ed.propertyOrder = append(ed.propertyOrder[:i], ed.propertyOrder[i+1:]...)
			break
		}
	}
	h.Release()
	return true
}

// PropertyKeys returns script-defined field names in insertion order.
func (e *Element) PropertyKeys() []string {
	return append([]string(nil), e.elementData.propertyOrder...)
}

// SetEventHandler installs the handler for eventType, or clears it when h
// is nil. The first handler for a type queues add-event.
func (e *Element) SetEventHandler(eventType string, h *handle.Handle) error {
	if e.disposed {
		return ErrInvalidState("The element has been disposed.")
	}
	ed := e.elementData
	old := ed.handlers[eventType]
	if h == nil {
		delete(ed.handlers, eventType)
		old.Release()
		return nil
	}
	ed.handlers[eventType] = h.Retain()
	old.Release()
	if !ed.listening[eventType] {
		ed.listening[eventType] = true
		e.AsNode().addCommand(uicommand.AddEvent(e.nativeID, eventType))
	}
	return nil
}

// EventHandler returns the handler for eventType, or nil.
func (e *Element) EventHandler(eventType string) *handle.Handle {
	return e.elementData.handlers[eventType]
}

// HandlerTypes returns the event types that currently have a handler.
func (e *Element) HandlerTypes() []string {
	types := make([]string, 0, len(e.elementData.handlers))
	for t := range e.elementData.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// syncNative flushes pending commands so a native query observes them.
func (e *Element) syncNative() (native.Renderer, error) {
	if e.disposed {
		return nil, ErrInvalidState("The element has been disposed.")
	}
	r := e.ownerDoc.documentData.renderer
	if r == nil {
		return nil, ErrCapabilityUnavailable("No native renderer is attached to the document.")
	}
	if err := e.ownerDoc.Flush(); err != nil {
		return nil, fmt.Errorf("flush before native query: %w", err)
	}
	return r, nil
}

// ViewModuleProperty flushes the queue and asks the native layer for a
// geometry value.
func (e *Element) ViewModuleProperty(prop native.ViewModuleProperty) (float64, error) {
	r, err := e.syncNative()
	if err != nil {
		return 0, err
	}
	return r.ViewModuleProperty(e.ownerDoc.ContextID(), e.nativeID, prop), nil
}

// BoundingClientRect flushes the queue and asks the native layer for the
// element's border box.
func (e *Element) BoundingClientRect() (native.BoundingClientRect, error) {
	r, err := e.syncNative()
	if err != nil {
		return native.BoundingClientRect{}, err
	}
	return r.BoundingClientRect(e.ownerDoc.ContextID(), e.nativeID), nil
}

// Click forwards a synthetic click when the native layer supports it.
func (e *Element) Click() error {
	r, err := e.syncNative()
	if err != nil {
		return err
	}
	if s, ok := r.(native.Scroller); ok {
		s.Click(e.ownerDoc.ContextID(), e.nativeID)
	}
	return nil
}

// ScrollTo sets the scroll offset when the native layer supports it.
func (e *Element) ScrollTo(x, y float64) error {
	r, err := e.syncNative()
	if err != nil {
		return err
	}
	if s, ok := r.(native.Scroller); ok {
		s.ScrollTo(e.ownerDoc.ContextID(), e.nativeID, x, y)
	}
	return nil
}

// ScrollBy moves the scroll offset when the native layer supports it.
func (e *Element) ScrollBy(dx, dy float64) error {
	r, err := e.syncNative()
	if err != nil {
		return err
	}
	if s, ok := r.(native.Scroller); ok {
		s.ScrollBy(e.ownerDoc.ContextID(), e.nativeID, dx, dy)
	}
	return nil
}

// CanExportBlob reports whether the native layer can rasterize elements.
func (e *Element) CanExportBlob() bool {
	_, ok := e.ownerDoc.documentData.renderer.(native.BlobExporter)
	return ok
}

// ToBlob flushes the queue and starts an asynchronous export. cb runs on
// whatever goroutine the native layer completes on.
func (e *Element) ToBlob(token uuid.UUID, devicePixelRatio float64, cb native.BlobCallback) error {
	if e.disposed {
		return ErrInvalidState("The element has been disposed.")
	}
	exporter, ok := e.ownerDoc.documentData.renderer.(native.BlobExporter)
	if !ok {
		return ErrCapabilityUnavailable("Failed to export blob: native method (toBlob) is not registered.")
	}
	if err := e.ownerDoc.Flush(); err != nil {
		return fmt.Errorf("flush before export: %w", err)
	}
	exporter.ToBlob(token, e.ownerDoc.ContextID(), e.nativeID, devicePixelRatio, cb)
	return nil
}

// releaseHandles drops every handle the element holds.
func (e *Element) releaseHandles() {
	ed := e.elementData
	ed.attributes.Destroy()
	for _, key := range ed.propertyOrder {
		ed.properties[key].Release()
	}
	ed.properties = make(map[string]*handle.Handle)
	ed.propertyOrder = nil
	for t, h := range ed.handlers {
		h.Release()
		delete(ed.handlers, t)
	}
	ed.style.clear()
}
