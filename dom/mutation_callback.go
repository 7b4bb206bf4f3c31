package dom

// MutationCallback receives notifications about document mutations. The id
// index is already up to date when these run, so a callback may query it
// or mutate the tree again.
type MutationCallback interface {
	// OnChildListMutation is called when children are added or removed.
	OnChildListMutation(target *Node, addedNodes, removedNodes []*Node)

	// OnAttributeMutation is called after an attribute is set or removed.
	OnAttributeMutation(target *Node, attributeName, oldValue string)

	// OnCharacterDataMutation is called when text node data changes.
	OnCharacterDataMutation(target *Node, oldValue string)
}

// RegisterMutationCallback registers a callback to receive mutation notifications.
func (d *Document) RegisterMutationCallback(callback MutationCallback) {
	if callback == nil {
		return
	}
	d.documentData.callbacks = append(d.documentData.callbacks, callback)
}

// UnregisterMutationCallback removes a callback.
func (d *Document) UnregisterMutationCallback(callback MutationCallback) {
	callbacks := d.documentData.callbacks
	for i, cb := range callbacks {
		if cb == callback {
			d.documentData.callbacks = append(callbacks[:i:i], callbacks[i+1:]...)
			return
		}
	}
}

// snapshot lets callbacks unregister themselves while being notified.
func (d *Document) snapshotCallbacks() []MutationCallback {
	return append([]MutationCallback(nil), d.documentData.callbacks...)
}

func (d *Document) notifyChildListMutation(target *Node, added, removed []*Node) {
	for _, cb := range d.snapshotCallbacks() {
		cb.OnChildListMutation(target, added, removed)
	}
}

func (d *Document) notifyAttributeMutation(target *Node, name, oldValue string) {
	for _, cb := range d.snapshotCallbacks() {
		cb.OnAttributeMutation(target, name, oldValue)
	}
}

func (d *Document) notifyCharacterDataMutation(target *Node, oldValue string) {
	for _, cb := range d.snapshotCallbacks() {
		cb.OnCharacterDataMutation(target, oldValue)
	}
}
