package dom

import (
	"fmt"
	"strings"

	"github.com/chrisuehlinger/vibebridge/handle"
)

// AttributeTable maps lowercase attribute names to value handles.
//
// The table owns one reference to every stored handle. Set does not release
// the displaced handle; it hands it back so the caller can run change
// notification first.
type AttributeTable struct {
	entries map[string]*handle.Handle
	order   []string
}

// NewAttributeTable creates an empty table.
func NewAttributeTable() *AttributeTable {
	return &AttributeTable{entries: make(map[string]*handle.Handle)}
}

// isNumberIndex reports whether name starts with an ASCII digit.
func isNumberIndex(name string) bool {
	return name != "" && name[0] >= '0' && name[0] <= '9'
}

// Has reports whether name is present.
func (t *AttributeTable) Has(name string) bool {
	name = strings.ToLower(name)
	if isNumberIndex(name) {
		return false
	}
	_, ok := t.entries[name]
	return ok
}

// Get returns the stored handle or nil. The table keeps its reference.
func (t *AttributeTable) Get(name string) *handle.Handle {
	name = strings.ToLower(name)
	if isNumberIndex(name) {
		return nil
	}
	return t.entries[name]
}

// Set stores h under name, retaining it, and returns the handle it
// replaced without releasing it.
func (t *AttributeTable) Set(name string, h *handle.Handle) (*handle.Handle, error) {
	name = strings.ToLower(name)
	if isNumberIndex(name) {
		return nil, ErrConstraint(fmt.Sprintf("'%s' is not a valid attribute name.", name))
	}
	old, exists := t.entries[name]
	if !exists {
		t.order = append(t.order, name)
	}
	t.entries[name] = h.Retain()
	return old, nil
}

// Remove releases and erases name. Absent names are ignored.
func (t *AttributeTable) Remove(name string) {
	name = strings.ToLower(name)
	h, ok := t.entries[name]
	if !ok {
		return
	}
	delete(t.entries, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	h.Release()
}

// Len returns the number of attributes.
func (t *AttributeTable) Len() int {
	return len(t.entries)
}

// Names returns attribute names in insertion order.
func (t *AttributeTable) Names() []string {
	return append([]string(nil), t.order...)
}

// Clone returns a table sharing every handle, each retained once more.
func (t *AttributeTable) Clone() *AttributeTable {
	c := &AttributeTable{
		entries: make(map[string]*handle.Handle, len(t.entries)),
		order:   append([]string(nil), t.order...),
	}
	for name, h := range t.entries {
		c.entries[name] = h.Retain()
	}
	return c
}

// Destroy releases every handle and empties the table.
func (t *AttributeTable) Destroy() {
	for _, name := range t.order {
		t.entries[name].Release()
	}
	t.entries = make(map[string]*handle.Handle)
	t.order = nil
}
