// Package headless is an in-process native layer. It mirrors the command
// stream into its own tree, lays it out, answers geometry queries and
// rasterizes elements to PNG.
package headless

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vibebridge/dom"
	"github.com/chrisuehlinger/vibebridge/layout"
	"github.com/chrisuehlinger/vibebridge/native"
	"github.com/chrisuehlinger/vibebridge/render"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// node is the native-side mirror of a script node.
type node struct {
	id       int32
	tag      string
	isText   bool
	text     string
	attrs    map[string]string
	style    map[string]string
	events   map[string]bool
	parent   *node
	children []*node
}

func (n *node) detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// contains reports whether other is n or one of its descendants.
func (n *node) contains(other *node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

func (n *node) styled() *layout.StyledNode {
	s := &layout.StyledNode{ID: n.id, IsText: n.isText, Text: n.text, Style: n.style}
	for _, c := range n.children {
		s.Children = append(s.Children, c.styled())
	}
	return s
}

// Options configures a Host.
type Options struct {
	ViewportWidth   float64
	ViewportHeight  float64
	// MaxExportPixels bounds width*height of an exported image.
	// Zero means DefaultMaxExportPixels.
	MaxExportPixels int
	Logger          *zap.Logger
}

// DefaultMaxExportPixels is 4096x4096.
const DefaultMaxExportPixels = 1 << 24

// Host implements native.Renderer, native.BlobExporter and native.Scroller.
type Host struct {
	logger    *zap.Logger
	viewport  layout.Dimensions
	maxPixels int

	mu     sync.Mutex
	nodes  map[int32]*node
	root   *node
	scroll map[int32][2]float64
	clicks map[int32]int

	dirty bool
	tree  *layout.LayoutBox
	boxes map[int32]*layout.LayoutBox

	applied int
	exports sync.WaitGroup
}

var (
	_ native.Renderer     = (*Host)(nil)
	_ native.BlobExporter = (*Host)(nil)
	_ native.Scroller     = (*Host)(nil)
)

// New creates a host whose tree holds only the HTML root.
func New(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 800
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 600
	}
	if opts.MaxExportPixels <= 0 {
		opts.MaxExportPixels = DefaultMaxExportPixels
	}
	root := &node{id: native.HTMLTargetID, tag: "html", attrs: map[string]string{}, style: map[string]string{}, events: map[string]bool{}}
	return &Host{
		logger:    opts.Logger.Named("headless"),
		viewport:  layout.Dimensions{Content: layout.Rect{Width: opts.ViewportWidth, Height: opts.ViewportHeight}},
		maxPixels: opts.MaxExportPixels,
		nodes:     map[int32]*node{native.HTMLTargetID: root},
		root:      root,
		scroll:    make(map[int32][2]float64),
		clicks:    make(map[int32]int),
		dirty:     true,
	}
}

// ApplyCommands mirrors a batch. Commands naming unknown or disposed ids
// are skipped.
func (h *Host) ApplyCommands(contextID int32, batch []uicommand.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cmd := range batch {
		if !h.apply(cmd) {
			h.logger.Debug("Skipping command for unknown node",
				zap.Int32("context", contextID),
				zap.Stringer("command", cmd))
		}
	}
	h.applied += len(batch)
	h.dirty = true
	return nil
}

func (h *Host) apply(cmd uicommand.Command) bool {
	if cmd.Op == uicommand.OpCreateElement || cmd.Op == uicommand.OpCreateTextNode {
		if _, exists := h.nodes[cmd.TargetID]; exists {
			return false
		}
		n := &node{
			id:     cmd.TargetID,
			attrs:  map[string]string{},
			style:  map[string]string{},
			events: map[string]bool{},
		}
		if cmd.Op == uicommand.OpCreateTextNode {
			n.isText, n.text = true, cmd.Value
		} else {
			n.tag = cmd.Name
		}
		h.nodes[cmd.TargetID] = n
		return true
	}

	target, ok := h.nodes[cmd.TargetID]
	if !ok {
		return false
	}
	switch cmd.Op {
	case uicommand.OpDispose:
		target.detach()
		delete(h.nodes, cmd.TargetID)
		delete(h.scroll, cmd.TargetID)
	case uicommand.OpSetProperty:
		switch {
		case target.isText && cmd.Name == "data":
			target.text = cmd.Value
		case cmd.Name == "style":
			target.attrs[cmd.Name] = cmd.Value
			for _, d := range dom.ParseDeclarations(cmd.Value) {
				target.style[camelCase(d.Property)] = d.Value
			}
		default:
			target.attrs[cmd.Name] = cmd.Value
		}
	case uicommand.OpRemoveProperty:
		delete(target.attrs, cmd.Name)
	case uicommand.OpSetStyle:
		if cmd.Value == "" {
			delete(target.style, cmd.Name)
		} else {
			target.style[cmd.Name] = cmd.Value
		}
	case uicommand.OpInsertAdjacentNode:
		child, ok := h.nodes[cmd.ChildID]
		if !ok {
			return false
		}
		parent := target
		if cmd.Name == uicommand.PositionBeforeBegin {
			parent = target.parent
		}
		// The mirror is left untouched when the insert cannot happen.
		if parent == nil || child == target || child.contains(parent) {
			return false
		}
		child.detach()
		if cmd.Name == uicommand.PositionBeforeBegin {
			for i, c := range parent.children {
				if c == target {
					parent.children = append(parent.children[:i], append([]*node{child}, parent.children[i:]...)...)
					break
				}
			}
		} else {
			parent.children = append(parent.children, child)
		}
		child.parent = parent
	case uicommand.OpRemoveNode:
		target.detach()
	case uicommand.OpAddEvent:
		target.events[cmd.Name] = true
	}
	return true
}

// camelCase turns a kebab-case CSS property into the form used by set-style.
func camelCase(prop string) string {
	out := make([]byte, 0, len(prop))
	upper := false
	for i := 0; i < len(prop); i++ {
		c := prop[i]
		if c == '-' {
			upper = i > 0
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

// relayout rebuilds the layout tree if anything changed. Callers hold mu.
func (h *Host) relayout() {
	if !h.dirty {
		return
	}
	h.tree = layout.BuildLayoutTree(h.root.styled(), h.viewport)
	h.boxes = make(map[int32]*layout.LayoutBox)
	h.tree.Walk(func(b *layout.LayoutBox) {
		h.boxes[b.StyledNode.ID] = b
	})
	h.dirty = false
}

func (h *Host) box(id int32) *layout.LayoutBox {
	h.relayout()
	return h.boxes[id]
}

func (h *Host) parentBox(id int32) *layout.LayoutBox {
	if n, ok := h.nodes[id]; ok && n.parent != nil {
		return h.boxes[n.parent.id]
	}
	return nil
}

// ViewModuleProperty answers a geometry query. Unknown or hidden nodes
// measure as zero.
func (h *Host) ViewModuleProperty(_ int32, targetID int32, prop native.ViewModuleProperty) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.box(targetID)
	if b == nil {
		return 0
	}
	d := b.Dimensions
	border := d.BorderBox()
	padding := d.PaddingBox()
	scrollW := math.Max(padding.Width, b.ContentExtent.Width+d.Padding.Right)
	scrollH := math.Max(padding.Height, b.ContentExtent.Height+d.Padding.Bottom)

	switch prop {
	case native.OffsetTop, native.OffsetLeft:
		var origin layout.Rect
		if p := h.parentBox(targetID); p != nil {
			origin = p.Dimensions.BorderBox()
		}
		if prop == native.OffsetTop {
			return border.Y - origin.Y
		}
		return border.X - origin.X
	case native.OffsetWidth:
		return border.Width
	case native.OffsetHeight:
		return border.Height
	case native.ClientWidth:
		return padding.Width
	case native.ClientHeight:
		return padding.Height
	case native.ClientTop:
		return d.Border.Top
	case native.ClientLeft:
		return d.Border.Left
	case native.ScrollTop:
		return h.scroll[targetID][1]
	case native.ScrollLeft:
		return h.scroll[targetID][0]
	case native.ScrollHeight:
		return scrollH
	case native.ScrollWidth:
		return scrollW
	}
	return 0
}

// BoundingClientRect returns the border box in viewport coordinates.
func (h *Host) BoundingClientRect(_ int32, targetID int32) native.BoundingClientRect {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.box(targetID)
	if b == nil {
		return native.BoundingClientRect{}
	}
	r := b.Dimensions.BorderBox()
	return native.BoundingClientRect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// Click records a synthetic click.
func (h *Host) Click(_ int32, targetID int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.nodes[targetID]; ok {
		h.clicks[targetID]++
	}
}

// Clicks returns how many synthetic clicks targetID received.
func (h *Host) Clicks(targetID int32) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clicks[targetID]
}

// ScrollTo sets the scroll offset, clamped to the scrollable range.
func (h *Host) ScrollTo(contextID, targetID int32, x, y float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scrollTo(targetID, x, y)
}

// ScrollBy moves the scroll offset, clamped to the scrollable range.
func (h *Host) ScrollBy(contextID, targetID int32, dx, dy float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur := h.scroll[targetID]
	h.scrollTo(targetID, cur[0]+dx, cur[1]+dy)
}

func (h *Host) scrollTo(targetID int32, x, y float64) {
	b := h.box(targetID)
	if b == nil {
		return
	}
	d := b.Dimensions
	padding := d.PaddingBox()
	maxX := math.Max(0, b.ContentExtent.Width+d.Padding.Right-padding.Width)
	maxY := math.Max(0, b.ContentExtent.Height+d.Padding.Bottom-padding.Height)
	h.scroll[targetID] = [2]float64{clamp(x, 0, maxX), clamp(y, 0, maxY)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ToBlob rasterizes targetID on a separate goroutine and reports through cb.
func (h *Host) ToBlob(token uuid.UUID, contextID, targetID int32, devicePixelRatio float64, cb native.BlobCallback) {
	h.exports.Add(1)
	go func() {
		defer h.exports.Done()
		data, err := h.ExportPNG(targetID, devicePixelRatio)
		if err != nil {
			h.logger.Debug("Export failed", zap.Int32("target", targetID), zap.Error(err))
		}
		cb(token, contextID, err, data)
	}()
}

// Wait blocks until every export started by ToBlob has reported.
func (h *Host) Wait() {
	h.exports.Wait()
}

// ExportPNG paints targetID's border box at the given pixel ratio.
func (h *Host) ExportPNG(targetID int32, devicePixelRatio float64) ([]byte, error) {
	if devicePixelRatio <= 0 || math.IsNaN(devicePixelRatio) || math.IsInf(devicePixelRatio, 0) {
		return nil, fmt.Errorf("invalid device pixel ratio %v", devicePixelRatio)
	}
	h.mu.Lock()
	b := h.box(targetID)
	if b == nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("element #%d is not rendered", targetID)
	}
	r := b.Dimensions.BorderBox()
	w, ht := math.Ceil(r.Width*devicePixelRatio), math.Ceil(r.Height*devicePixelRatio)
	// Compared as floats so huge ratios cannot overflow the int conversion.
	limit := float64(h.maxPixels)
	if w > limit || ht > limit || w*ht > limit {
		h.mu.Unlock()
		return nil, fmt.Errorf("export of %.0fx%.0f pixels exceeds the limit of %d", w, ht, h.maxPixels)
	}
	canvas := render.NewCanvas(int(w), int(ht))
	canvas.Paint(b, render.Viewport{Origin: r, Scale: devicePixelRatio})
	h.mu.Unlock()

	return canvas.EncodePNG()
}

// Snapshot paints the whole viewport.
func (h *Host) Snapshot() *image.RGBA {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relayout()
	c := h.viewport.Content
	canvas := render.NewCanvas(int(c.Width), int(c.Height))
	canvas.Paint(h.tree, render.Viewport{Scale: 1})
	return canvas.ToImage()
}

// Applied returns the total number of commands received.
func (h *Host) Applied() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.applied
}

// Attribute returns a mirrored attribute, for inspection.
func (h *Host) Attribute(targetID int32, name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[targetID]
	if !ok {
		return "", false
	}
	v, ok := n.attrs[name]
	return v, ok
}

// Style returns a mirrored style property, for inspection.
func (h *Host) Style(targetID int32, name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.nodes[targetID]; ok {
		return n.style[name]
	}
	return ""
}

// Children returns the mirrored child ids of targetID.
func (h *Host) Children(targetID int32) []int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[targetID]
	if !ok {
		return nil
	}
	ids := make([]int32, 0, len(n.children))
	for _, c := range n.children {
		ids = append(ids, c.id)
	}
	return ids
}

// Listening reports whether targetID announced a handler for eventType.
func (h *Host) Listening(targetID int32, eventType string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[targetID]
	return ok && n.events[eventType]
}

// Has reports whether targetID is alive on the native side.
func (h *Host) Has(targetID int32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.nodes[targetID]
	return ok
}

// Run drains q into the host every interval until ctx is done.
func (h *Host) Run(ctx context.Context, q *uicommand.Queue, interval time.Duration) error {
	return RunFrames(ctx, q, h, interval)
}

// RunFrames drains q into sink every interval until ctx is done, then
// flushes once more. Batches go through Queue.Flush so they interleave
// correctly with script-side flushes.
func RunFrames(ctx context.Context, q *uicommand.Queue, sink uicommand.Sink, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return q.Flush(sink)
		case <-ticker.C:
			if err := q.Flush(sink); err != nil {
				return fmt.Errorf("headless: frame flush: %w", err)
			}
		}
	}
}
