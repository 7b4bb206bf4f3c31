package dom

import (
	"strings"
	"sync"
)

// ElementCreator builds the element for a registered tag. Creators
// normally start from Document.NewElement so the native side learns about
// the node. Returning nil falls back to the generic element.
type ElementCreator func(doc *Document, tagName string) *Element

// Registry maps tag names to custom element creators. The first
// definition of a tag wins; later ones are ignored. Every document gets its
// own registry unless one is passed with WithRegistry.
type Registry struct {
	mu       sync.RWMutex
	creators map[string]ElementCreator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{creators: make(map[string]ElementCreator)}
}

// Define registers creator for tagName. It reports false when the tag was
// already defined, in which case nothing changes.
func (r *Registry) Define(tagName string, creator ElementCreator) bool {
	if tagName == "" || creator == nil {
		return false
	}
	key := strings.ToLower(tagName)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.creators[key]; exists {
		return false
	}
	r.creators[key] = creator
	return true
}

// Lookup returns the creator for tagName.
func (r *Registry) Lookup(tagName string) (ElementCreator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creators[strings.ToLower(tagName)]
	return c, ok
}
