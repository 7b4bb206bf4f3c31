package dom

import (
	"strings"

	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// Node is the tree collaborator shared by documents, elements and text.
// A parent owns its children; children keep a back pointer for traversal.
type Node struct {
	nodeType   NodeType
	nodeName   string
	ownerDoc   *Document
	parentNode *Node

	// First/last child and sibling pointers for efficient traversal
	firstChild  *Node
	lastChild   *Node
	prevSibling *Node
	nextSibling *Node

	// nativeID is fixed at construction and identifies the node in the
	// command stream.
	nativeID int32
	disposed bool

	// Type-specific data (only one will be non-nil based on nodeType)
	elementData  *elementData
	textData     *string
	documentData *documentData
}

// newNode creates a new node with the given type and name.
func newNode(nodeType NodeType, nodeName string, ownerDoc *Document, nativeID int32) *Node {
	return &Node{
		nodeType: nodeType,
		nodeName: nodeName,
		ownerDoc: ownerDoc,
		nativeID: nativeID,
	}
}

// NodeType returns the type of the node.
func (n *Node) NodeType() NodeType {
	return n.nodeType
}

// NodeName returns the name of the node. Elements report their upper-cased
// tag name, text nodes "#text", documents "#document".
func (n *Node) NodeName() string {
	if n.nodeType == ElementNode {
		return (*Element)(n).TagName()
	}
	return n.nodeName
}

// NativeID returns the identifier the native layer knows this node by.
func (n *Node) NativeID() int32 {
	return n.nativeID
}

// Disposed reports whether Dispose has run on this node.
func (n *Node) Disposed() bool {
	return n.disposed
}

// OwnerDocument returns the Document that owns this node.
// For Document nodes, this returns nil.
func (n *Node) OwnerDocument() *Document {
	if n.nodeType == DocumentNode {
		return nil
	}
	return n.ownerDoc
}

// document returns the document whose queue this node writes to.
func (n *Node) document() *Document {
	if n.nodeType == DocumentNode {
		return (*Document)(n)
	}
	return n.ownerDoc
}

// ParentNode returns the parent of this node.
func (n *Node) ParentNode() *Node {
	return n.parentNode
}

// ParentElement returns the parent Element, or nil if the parent is not an element.
func (n *Node) ParentElement() *Element {
	if n.parentNode != nil && n.parentNode.nodeType == ElementNode {
		return (*Element)(n.parentNode)
	}
	return nil
}

// FirstChild returns the first child node, or nil if there are no children.
func (n *Node) FirstChild() *Node {
	return n.firstChild
}

// LastChild returns the last child node, or nil if there are no children.
func (n *Node) LastChild() *Node {
	return n.lastChild
}

// PreviousSibling returns the previous sibling node, or nil if this is the first child.
func (n *Node) PreviousSibling() *Node {
	return n.prevSibling
}

// NextSibling returns the next sibling node, or nil if this is the last child.
func (n *Node) NextSibling() *Node {
	return n.nextSibling
}

// HasChildNodes returns true if this node has any child nodes.
func (n *Node) HasChildNodes() bool {
	return n.firstChild != nil
}

// ChildNodes returns a snapshot of the children in document order.
func (n *Node) ChildNodes() []*Node {
	var children []*Node
	for c := n.firstChild; c != nil; c = c.nextSibling {
		children = append(children, c)
	}
	return children
}

// GetRootNode returns the topmost ancestor of this node.
func (n *Node) GetRootNode() *Node {
	root := n
	for root.parentNode != nil {
		root = root.parentNode
	}
	return root
}

// IsConnected returns true if the node is in a document tree.
func (n *Node) IsConnected() bool {
	return n.GetRootNode().nodeType == DocumentNode
}

// Contains returns true if other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.parentNode {
		if p == n {
			return true
		}
	}
	return false
}

// TextContent joins the text of every descendant text node.
func (n *Node) TextContent() string {
	switch n.nodeType {
	case TextNode:
		return *n.textData
	case ElementNode:
		var sb strings.Builder
		for c := n.firstChild; c != nil; c = c.nextSibling {
			sb.WriteString(c.TextContent())
		}
		return sb.String()
	default:
		return ""
	}
}

// AppendChild adds a node to the end of the list of children.
func (n *Node) AppendChild(child *Node) (*Node, error) {
	return n.InsertBefore(child, nil)
}

// InsertBefore inserts newChild before refChild, or at the end when
// refChild is nil. A child that already has a parent is moved.
func (n *Node) InsertBefore(newChild, refChild *Node) (*Node, error) {
	if err := n.ensurePreInsertionValidity(newChild, refChild); err != nil {
		return nil, err
	}
	if refChild == newChild {
		refChild = newChild.nextSibling
	}
	if newChild.parentNode != nil {
		newChild.parentNode.removeChildInternal(newChild)
	}
	n.insertChildInternal(newChild, refChild)
	return newChild, nil
}

func (n *Node) ensurePreInsertionValidity(child, ref *Node) error {
	if child == nil {
		return ErrArgument("The node to be inserted is null.")
	}
	if n.disposed || child.disposed {
		return ErrInvalidState("The node has been disposed.")
	}
	if n.nodeType != ElementNode && n.nodeType != DocumentNode {
		return ErrHierarchyRequest("This node type does not support this method.")
	}
	if child.nodeType == DocumentNode {
		return ErrHierarchyRequest("Nodes of type '#document' may not be inserted.")
	}
	if child.document() != n.document() {
		return ErrHierarchyRequest("The node belongs to a different document.")
	}
	if child.Contains(n) {
		return ErrHierarchyRequest("The new child element contains the parent.")
	}
	if ref != nil && ref.parentNode != n {
		return ErrNotFound("The node before which the new node is to be inserted is not a child of this node.")
	}
	if n.nodeType == DocumentNode {
		if child.nodeType != ElementNode {
			return ErrHierarchyRequest("Only elements may be inserted into a document.")
		}
		for c := n.firstChild; c != nil; c = c.nextSibling {
			if c.nodeType == ElementNode && c != child {
				return ErrHierarchyRequest("Only one element on document allowed.")
			}
		}
	}
	return nil
}

// link splices child into n's child list without side effects.
func (n *Node) link(child, ref *Node) {
	child.parentNode = n
	if ref == nil {
		child.prevSibling = n.lastChild
		child.nextSibling = nil
		if n.lastChild != nil {
			n.lastChild.nextSibling = child
		} else {
			n.firstChild = child
		}
		n.lastChild = child
		return
	}
	child.nextSibling = ref
	child.prevSibling = ref.prevSibling
	if ref.prevSibling != nil {
		ref.prevSibling.nextSibling = child
	} else {
		n.firstChild = child
	}
	ref.prevSibling = child
}

// unlink removes child from n's child list without side effects.
func (n *Node) unlink(child *Node) {
	if child.prevSibling != nil {
		child.prevSibling.nextSibling = child.nextSibling
	} else {
		n.firstChild = child.nextSibling
	}
	if child.nextSibling != nil {
		child.nextSibling.prevSibling = child.prevSibling
	} else {
		n.lastChild = child.prevSibling
	}
	child.parentNode = nil
	child.prevSibling = nil
	child.nextSibling = nil
}

func (n *Node) insertChildInternal(child, ref *Node) {
	n.link(child, ref)

	doc := n.document()
	if ref == nil {
		n.addCommand(uicommand.InsertAdjacentNode(n.nativeID, uicommand.PositionBeforeEnd, child.nativeID))
	} else {
		n.addCommand(uicommand.InsertAdjacentNode(ref.nativeID, uicommand.PositionBeforeBegin, child.nativeID))
	}

	// The id index must be current before observers run.
	if child.IsConnected() {
		doc.notifyNodeInserted(child)
	}
	doc.notifyChildListMutation(n, []*Node{child}, nil)
}

// RemoveChild removes a child node from this node.
func (n *Node) RemoveChild(child *Node) (*Node, error) {
	if child == nil {
		return nil, ErrArgument("The node to be removed is null.")
	}
	if child.parentNode != n {
		return nil, ErrNotFound("The node to be removed is not a child of this node.")
	}
	if n.disposed {
		return nil, ErrInvalidState("The node has been disposed.")
	}
	n.removeChildInternal(child)
	return child, nil
}

// Remove detaches the node from its parent, if any.
func (n *Node) Remove() {
	if n.parentNode != nil && !n.parentNode.disposed {
		n.parentNode.removeChildInternal(n)
	}
}

func (n *Node) removeChildInternal(child *Node) {
	wasConnected := child.IsConnected()
	n.unlink(child)

	doc := n.document()
	child.addCommand(uicommand.RemoveNode(child.nativeID))
	if wasConnected {
		doc.notifyNodeRemoved(child)
	}
	doc.notifyChildListMutation(n, nil, []*Node{child})
}

// addCommand queues cmd unless the node has been disposed.
func (n *Node) addCommand(cmd uicommand.Command) {
	if n.disposed {
		return
	}
	doc := n.document()
	if doc == nil {
		return
	}
	doc.documentData.queue.Add(cmd)
}

// Dispose tears down a detached node and its subtree: every held handle is
// released and each node queues a single dispose record. Afterwards the
// nodes emit nothing.
func (n *Node) Dispose() error {
	if n.nodeType == DocumentNode {
		return ErrInvalidState("Documents are disposed with Document.Dispose.")
	}
	if n.parentNode != nil && !n.parentNode.disposed {
		return ErrInvalidState("Cannot dispose a node that is still attached.")
	}
	Walk(n, func(node *Node) bool {
		node.disposeSelf()
		return true
	})
	return nil
}

func (n *Node) disposeSelf() {
	if n.disposed {
		return
	}
	if n.nativeID >= 0 {
		n.addCommand(uicommand.Dispose(n.nativeID))
	}
	n.disposed = true
	if n.nodeType == ElementNode {
		(*Element)(n).releaseHandles()
	}
}
