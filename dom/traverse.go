package dom

// Walk visits n and then its descendants in pre-order. When visit returns
// false the children of that node are skipped.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for c := n.firstChild; c != nil; {
		// visit may detach c
		next := c.nextSibling
		Walk(c, visit)
		c = next
	}
}

// WalkElements visits every element in n's subtree, n included, in pre-order.
func WalkElements(n *Node, visit func(*Element)) {
	Walk(n, func(node *Node) bool {
		if node.nodeType == ElementNode {
			visit((*Element)(node))
		}
		return true
	})
}
