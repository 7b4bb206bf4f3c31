// Package handle models script-engine value handles with explicit
// retain/release ownership.
//
// Every attribute value, expando property and pending promise capability
// stored on the Go side of the bridge is held through a Handle. An Arena
// keeps the bookkeeping needed to assert that nothing leaked and nothing
// was released twice.
package handle

import (
	"fmt"
	"sync/atomic"
)

// Arena allocates handles and tracks how many are alive.
type Arena struct {
	live           atomic.Int64
	doubleReleases atomic.Int64
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New wraps v in a handle holding one reference.
func (a *Arena) New(v any) *Handle {
	h := &Handle{arena: a, value: v}
	h.refs.Store(1)
	a.live.Add(1)
	return h
}

// Live returns the number of handles with at least one reference.
func (a *Arena) Live() int64 {
	return a.live.Load()
}

// DoubleReleases returns how many Release calls hit an already dead handle.
func (a *Arena) DoubleReleases() int64 {
	return a.doubleReleases.Load()
}

// Handle is a reference-counted pointer to an engine value.
type Handle struct {
	arena *Arena
	value any
	refs  atomic.Int32
}

// Retain adds a reference and returns h for chaining.
func (h *Handle) Retain() *Handle {
	if h == nil {
		return nil
	}
	if h.refs.Add(1) == 1 {
		// resurrected after the last release
		h.arena.live.Add(1)
	}
	return h
}

// Release drops a reference. Releasing a dead handle is recorded, not fatal.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	switch n := h.refs.Add(-1); {
	case n == 0:
		h.arena.live.Add(-1)
	case n < 0:
		h.refs.Store(0)
		h.arena.doubleReleases.Add(1)
	}
}

// Refs returns the current reference count.
func (h *Handle) Refs() int32 {
	if h == nil {
		return 0
	}
	return h.refs.Load()
}

// Alive reports whether the handle still holds a reference.
func (h *Handle) Alive() bool {
	return h.Refs() > 0
}

// Value returns the wrapped value.
func (h *Handle) Value() any {
	if h == nil {
		return nil
	}
	return h.value
}

// String renders the wrapped value the way it is sent across the bridge.
func (h *Handle) String() string {
	if h == nil {
		return ""
	}
	switch v := h.value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
