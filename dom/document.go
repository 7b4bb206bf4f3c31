package dom

import (
	"github.com/chrisuehlinger/vibebridge/handle"
	"github.com/chrisuehlinger/vibebridge/native"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// Document is the root of a script-side tree and the owner of its command
// queue, id index and handle arena.
type Document Node

// documentData holds data specific to Document nodes.
type documentData struct {
	queue    *uicommand.Queue
	renderer native.Renderer
	registry *Registry
	arena    *handle.Arena

	nextID int32
	// ids holds connected elements per non-empty id, in connection order.
	ids map[string][]*Element

	documentElement *Element
	body            *Element

	callbacks []MutationCallback
}

// Option configures a Document.
type Option func(*documentData)

// WithQueue sets the command queue. The default is a fresh queue for context 0.
func WithQueue(q *uicommand.Queue) Option {
	return func(d *documentData) { d.queue = q }
}

// WithRenderer attaches the native layer.
func WithRenderer(r native.Renderer) Option {
	return func(d *documentData) { d.renderer = r }
}

// WithRegistry sets the custom element registry.
func WithRegistry(r *Registry) Option {
	return func(d *documentData) { d.registry = r }
}

// WithArena sets the handle arena.
func WithArena(a *handle.Arena) Option {
	return func(d *documentData) { d.arena = a }
}

// NewDocument creates a document with the implicit HTML root and a body.
// Creating the body queues its create-element and insert commands.
func NewDocument(opts ...Option) *Document {
	data := &documentData{
		nextID:   1,
		ids:      make(map[string][]*Element),
	}
	for _, opt := range opts {
		opt(data)
	}
	if data.queue == nil {
		data.queue = uicommand.NewQueue(0)
	}
	if data.arena == nil {
		data.arena = handle.NewArena()
	}
	if data.registry == nil {
		data.registry = NewRegistry()
	}

	n := newNode(DocumentNode, "#document", nil, native.DocumentTargetID)
	n.documentData = data
	doc := (*Document)(n)

	html, _ := doc.CreateElement("HTML")
	n.link(html.AsNode(), nil)
	data.documentElement = html

	body, _ := doc.CreateElement("BODY")
	_, _ = html.AsNode().AppendChild(body.AsNode())
	data.body = body

	return doc
}

// AsNode returns the underlying Node.
func (d *Document) AsNode() *Node {
	return (*Node)(d)
}

// NodeType returns DocumentNode (9).
func (d *Document) NodeType() NodeType {
	return DocumentNode
}

// DocumentElement returns the root element.
func (d *Document) DocumentElement() *Element {
	return d.documentData.documentElement
}

// Body returns the body element.
func (d *Document) Body() *Element {
	return d.documentData.body
}

// Queue returns the command queue.
func (d *Document) Queue() *uicommand.Queue {
	return d.documentData.queue
}

// ContextID returns the context id the queue was created for.
func (d *Document) ContextID() int32 {
	return d.documentData.queue.ContextID()
}

// Arena returns the handle arena used for every handle the document owns.
func (d *Document) Arena() *handle.Arena {
	return d.documentData.arena
}

// Registry returns the custom element registry.
func (d *Document) Registry() *Registry {
	return d.documentData.registry
}

// Renderer returns the attached native layer, or nil.
func (d *Document) Renderer() native.Renderer {
	return d.documentData.renderer
}

// SetRenderer attaches a native layer after construction.
func (d *Document) SetRenderer(r native.Renderer) {
	d.documentData.renderer = r
}

// Flush hands every queued command to the renderer. Without a renderer
// the commands stay queued.
func (d *Document) Flush() error {
	if d.documentData.renderer == nil {
		return nil
	}
	return d.documentData.queue.Flush(d.documentData.renderer)
}

func (d *Document) allocID() int32 {
	id := d.documentData.nextID
	d.documentData.nextID++
	return id
}

// CreateElement resolves tagName against the registry, then the HTML root
// sentinel, and otherwise creates a generic element.
func (d *Document) CreateElement(tagName string) (*Element, error) {
	if tagName == "" {
		return nil, ErrArgument("Illegal constructor")
	}
	if creator, ok := d.documentData.registry.Lookup(tagName); ok {
		if e := creator(d, tagName); e != nil {
			return e, nil
		}
	}
	if tagName == "HTML" {
		return d.newElement(tagName, native.HTMLTargetID), nil
	}
	return d.NewElement(tagName), nil
}

// NewElement creates a generic element and queues its create-element
// command. It bypasses the registry.
func (d *Document) NewElement(tagName string) *Element {
	id := d.allocID()
	e := d.newElement(tagName, id)
	e.AsNode().addCommand(uicommand.CreateElement(id, tagName))
	return e
}

// CreateTextNode creates a text node and queues its create-text-node command.
func (d *Document) CreateTextNode(data string) *Text {
	id := d.allocID()
	n := newNode(TextNode, "#text", d, id)
	n.textData = &data
	n.addCommand(uicommand.CreateTextNode(id, data))
	return (*Text)(n)
}

// GetElementByID returns the first connected element with the given id.
func (d *Document) GetElementByID(id string) *Element {
	if list := d.documentData.ids[id]; len(list) > 0 {
		return list[0]
	}
	return nil
}

// ElementsByID returns every connected element currently indexed under id.
func (d *Document) ElementsByID(id string) []*Element {
	return append([]*Element(nil), d.documentData.ids[id]...)
}

// IndexedIDs returns the number of distinct ids in the index.
func (d *Document) IndexedIDs() int {
	return len(d.documentData.ids)
}

func (d *Document) addElementByID(id string, e *Element) {
	list := d.documentData.ids[id]
	for _, existing := range list {
		if existing == e {
			return
		}
	}
	d.documentData.ids[id] = append(list, e)
}

func (d *Document) removeElementByID(id string, e *Element) {
	list := d.documentData.ids[id]
	for i, existing := range list {
		if existing == e {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(d.documentData.ids, id)
		return
	}
	d.documentData.ids[id] = list
}

// notifyNodeInserted replays id registration for every element of a
// freshly connected subtree, parents before children.
func (d *Document) notifyNodeInserted(n *Node) {
	WalkElements(n, func(e *Element) {
		if id := e.idAttribute(); id != "" {
			d.addElementByID(id, e)
		}
	})
}

func (d *Document) notifyNodeRemoved(n *Node) {
	WalkElements(n, func(e *Element) {
		if id := e.idAttribute(); id != "" {
			d.removeElementByID(id, e)
		}
	})
}

// Dispose releases every node of the document. Pending commands, including
// the dispose records, remain queued for a final flush.
func (d *Document) Dispose() {
	for c := d.AsNode().firstChild; c != nil; c = c.nextSibling {
		Walk(c, func(node *Node) bool {
			node.disposeSelf()
			return true
		})
	}
	d.documentData.ids = make(map[string][]*Element)
	d.AsNode().disposed = true
}
