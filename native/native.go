// Package native declares the contract between the bridge and the layer
// that owns layout and paint.
package native

import (
	"github.com/google/uuid"

	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// Reserved target ids that never go through create-element.
const (
	HTMLTargetID     int32 = -1
	DocumentTargetID int32 = -2
)

// ViewModuleProperty selects a geometry value the native layer computes.
type ViewModuleProperty uint8

const (
	OffsetTop ViewModuleProperty = iota
	OffsetLeft
	OffsetWidth
	OffsetHeight
	ClientWidth
	ClientHeight
	ClientTop
	ClientLeft
	ScrollTop
	ScrollLeft
	ScrollHeight
	ScrollWidth
)

var viewModuleNames = [...]string{
	"offsetTop", "offsetLeft", "offsetWidth", "offsetHeight",
	"clientWidth", "clientHeight", "clientTop", "clientLeft",
	"scrollTop", "scrollLeft", "scrollHeight", "scrollWidth",
}

func (p ViewModuleProperty) String() string {
	if int(p) < len(viewModuleNames) {
		return viewModuleNames[p]
	}
	return "unknown"
}

// ViewModuleProperties lists every property in enumeration order.
func ViewModuleProperties() []ViewModuleProperty {
	props := make([]ViewModuleProperty, len(viewModuleNames))
	for i := range props {
		props[i] = ViewModuleProperty(i)
	}
	return props
}

// ParseViewModuleProperty maps a script property name to its enumeration value.
func ParseViewModuleProperty(name string) (ViewModuleProperty, bool) {
	for i, n := range viewModuleNames {
		if n == name {
			return ViewModuleProperty(i), true
		}
	}
	return 0, false
}

// BoundingClientRect is the border box of an element in viewport coordinates.
type BoundingClientRect struct {
	X, Y, Width, Height float64
}

func (r BoundingClientRect) Top() float64    { return r.Y }
func (r BoundingClientRect) Left() float64   { return r.X }
func (r BoundingClientRect) Right() float64  { return r.X + r.Width }
func (r BoundingClientRect) Bottom() float64 { return r.Y + r.Height }

// Renderer is the minimum a native layer must provide. Queries are only
// issued after the command queue has been flushed into ApplyCommands.
type Renderer interface {
	uicommand.Sink
	ViewModuleProperty(contextID, targetID int32, prop ViewModuleProperty) float64
	BoundingClientRect(contextID, targetID int32) BoundingClientRect
}

// BlobCallback delivers the result of an export. err is nil on success.
// It may be invoked on any goroutine.
type BlobCallback func(token uuid.UUID, contextID int32, err error, data []byte)

// BlobExporter is implemented by native layers that can rasterize an element.
type BlobExporter interface {
	ToBlob(token uuid.UUID, contextID, targetID int32, devicePixelRatio float64, cb BlobCallback)
}

// Scroller is implemented by native layers that support script driven
// scrolling and synthetic clicks.
type Scroller interface {
	Click(contextID, targetID int32)
	ScrollTo(contextID, targetID int32, x, y float64)
	ScrollBy(contextID, targetID int32, dx, dy float64)
}
