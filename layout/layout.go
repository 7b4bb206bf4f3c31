// Package layout computes a block box model for the native mirror tree.
// Only px lengths, percentage widths, display:none and overflow metrics are
// understood; everything else lays out as a plain block.
package layout

import (
	"math"
	"strconv"
	"strings"
)

// Dimensions represents the dimensions of a layout box.
type Dimensions struct {
	Content Rect
	Padding EdgeSizes
	Border  EdgeSizes
	Margin  EdgeSizes
}

// Rect represents a rectangular area.
type Rect struct {
	X, Y, Width, Height float64
}

// EdgeSizes represents the sizes of edges (top, right, bottom, left).
type EdgeSizes struct {
	Top, Right, Bottom, Left float64
}

// BoxType represents the type of layout box.
type BoxType int

const (
	BlockBox BoxType = iota
	TextBox
)

// Default text metrics for text runs.
const (
	DefaultFontSize = 16.0
	lineHeightRatio = 1.25
	charWidthRatio  = 0.5
)

// StyledNode is the input to layout: a node id, its inline style keyed by
// camelCase property name, and its children. Text nodes carry Text.
type StyledNode struct {
	ID       int32
	IsText   bool
	Text     string
	Style    map[string]string
	Children []*StyledNode
}

// LayoutBox represents a box in the layout tree.
type LayoutBox struct {
	Dimensions Dimensions
	BoxType    BoxType
	StyledNode *StyledNode
	Children   []*LayoutBox

	// ContentExtent is the size of the area covered by in-flow children,
	// measured from the padding box origin.
	ContentExtent Rect
}

// BuildLayoutTree lays out root inside containingBlock. Nodes with
// display:none produce no box; the result is nil if root itself is hidden.
func BuildLayoutTree(root *StyledNode, containingBlock Dimensions) *LayoutBox {
	if root == nil {
		return nil
	}
	// The containing block's height is the running cursor for children.
	containingBlock.Content.Height = 0
	return layoutNode(root, containingBlock)
}

func layoutNode(node *StyledNode, containingBlock Dimensions) *LayoutBox {
	if !node.IsText && node.style("display") == "none" {
		return nil
	}
	box := &LayoutBox{StyledNode: node}
	if node.IsText {
		box.BoxType = TextBox
		box.layoutText(containingBlock)
		return box
	}
	box.BoxType = BlockBox
	box.calculateBlockWidth(containingBlock)
	box.calculateBlockPosition(containingBlock)
	box.layoutBlockChildren()
	box.calculateBlockHeight()
	return box
}

// calculateBlockWidth resolves width, horizontal padding, border and margin.
// An auto width fills the containing block.
func (b *LayoutBox) calculateBlockWidth(containingBlock Dimensions) {
	n := b.StyledNode
	cw := containingBlock.Content.Width
	d := &b.Dimensions

	d.Padding.Left = n.length("paddingLeft", "padding", cw)
	d.Padding.Right = n.length("paddingRight", "padding", cw)
	d.Border.Left = n.length("borderLeftWidth", "borderWidth", cw)
	d.Border.Right = n.length("borderRightWidth", "borderWidth", cw)
	d.Margin.Left = n.length("marginLeft", "margin", cw)
	d.Margin.Right = n.length("marginRight", "margin", cw)

	edges := d.Padding.Left + d.Padding.Right + d.Border.Left + d.Border.Right + d.Margin.Left + d.Margin.Right
	if w, ok := ParseLength(n.style("width"), cw); ok {
		d.Content.Width = w
	} else {
		d.Content.Width = math.Max(0, cw-edges)
	}
}

// calculateBlockPosition places the box below whatever the containing block
// has already laid out.
func (b *LayoutBox) calculateBlockPosition(containingBlock Dimensions) {
	n := b.StyledNode
	cw := containingBlock.Content.Width
	d := &b.Dimensions

	d.Padding.Top = n.length("paddingTop", "padding", cw)
	d.Padding.Bottom = n.length("paddingBottom", "padding", cw)
	d.Border.Top = n.length("borderTopWidth", "borderWidth", cw)
	d.Border.Bottom = n.length("borderBottomWidth", "borderWidth", cw)
	d.Margin.Top = n.length("marginTop", "margin", cw)
	d.Margin.Bottom = n.length("marginBottom", "margin", cw)

	d.Content.X = containingBlock.Content.X + d.Margin.Left + d.Border.Left + d.Padding.Left
	d.Content.Y = containingBlock.Content.Y + containingBlock.Content.Height +
		d.Margin.Top + d.Border.Top + d.Padding.Top
}

func (b *LayoutBox) layoutBlockChildren() {
	d := &b.Dimensions
	cursor := *d
	cursor.Content.Height = 0
	for _, child := range b.StyledNode.Children {
		cb := layoutNode(child, cursor)
		if cb == nil {
			continue
		}
		b.Children = append(b.Children, cb)
		cursor.Content.Height += cb.Dimensions.MarginBox().Height

		right := cb.Dimensions.MarginBox().X + cb.Dimensions.MarginBox().Width - d.Content.X + d.Padding.Left
		b.ContentExtent.Width = math.Max(b.ContentExtent.Width, right)
	}
	b.ContentExtent.Height = cursor.Content.Height + d.Padding.Top
	d.Content.Height = cursor.Content.Height
}

// calculateBlockHeight applies an explicit height over the content height.
func (b *LayoutBox) calculateBlockHeight() {
	if h, ok := ParseLength(b.StyledNode.style("height"), 0); ok {
		b.Dimensions.Content.Height = h
	}
}

func (b *LayoutBox) layoutText(containingBlock Dimensions) {
	d := &b.Dimensions
	fontSize := DefaultFontSize
	charWidth := fontSize * charWidthRatio
	lineHeight := fontSize * lineHeightRatio

	width := float64(len([]rune(b.StyledNode.Text))) * charWidth
	lines := 1.0
	if cw := containingBlock.Content.Width; cw > 0 && width > cw {
		lines = math.Ceil(width / cw)
		width = cw
	}
	if strings.TrimSpace(b.StyledNode.Text) == "" {
		width, lines = 0, 0
	}
	d.Content = Rect{
		X:      containingBlock.Content.X,
		Y:      containingBlock.Content.Y + containingBlock.Content.Height,
		Width:  width,
		Height: lines * lineHeight,
	}
}

// PaddingBox returns the area covered by content and padding.
func (d *Dimensions) PaddingBox() Rect {
	return d.Content.ExpandedBy(d.Padding)
}

// BorderBox returns the area covered by content, padding, and border.
func (d *Dimensions) BorderBox() Rect {
	return d.PaddingBox().ExpandedBy(d.Border)
}

// MarginBox returns the area covered by content, padding, border, and margin.
func (d *Dimensions) MarginBox() Rect {
	return d.BorderBox().ExpandedBy(d.Margin)
}

// ExpandedBy returns a rectangle expanded by the given edge sizes.
func (r Rect) ExpandedBy(edge EdgeSizes) Rect {
	return Rect{
		X:      r.X - edge.Left,
		Y:      r.Y - edge.Top,
		Width:  r.Width + edge.Left + edge.Right,
		Height: r.Height + edge.Top + edge.Bottom,
	}
}

// Walk visits b and its descendants in pre-order.
func (b *LayoutBox) Walk(visit func(*LayoutBox)) {
	if b == nil {
		return
	}
	visit(b)
	for _, c := range b.Children {
		c.Walk(visit)
	}
}

func (n *StyledNode) style(name string) string {
	if n.Style == nil {
		return ""
	}
	return strings.TrimSpace(n.Style[name])
}

// length resolves a longhand, falling back to its shorthand.
func (n *StyledNode) length(longhand, shorthand string, percentBase float64) float64 {
	if v, ok := ParseLength(n.style(longhand), percentBase); ok {
		return v
	}
	if v, ok := ParseLength(n.style(shorthand), percentBase); ok {
		return v
	}
	return 0
}

// ParseLength parses "12px", "12", or "50%" (of percentBase). Anything
// else, including "auto", is reported as not set.
func ParseLength(v string, percentBase float64) (float64, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" || v == "auto" {
		return 0, false
	}
	switch {
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "%"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return 0, false
		}
		return percentBase * f / 100, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
