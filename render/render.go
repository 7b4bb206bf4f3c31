// Package render paints layout boxes into an RGBA canvas: backgrounds,
// solid borders and text runs as flat glyph bars.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/chrisuehlinger/vibebridge/layout"
)

// Canvas represents the rendering surface.
type Canvas struct {
	Pixels []color.RGBA
	Width  int
	Height int
}

// NewCanvas creates a new canvas with the given dimensions, cleared to white.
func NewCanvas(width, height int) *Canvas {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c := &Canvas{
		Pixels: make([]color.RGBA, width*height),
		Width:  width,
		Height: height,
	}
	c.Clear(color.RGBA{255, 255, 255, 255})
	return c
}

// Viewport maps layout coordinates onto the canvas.
type Viewport struct {
	Origin layout.Rect
	Scale  float64
}

// Paint renders the layout tree in tree order. Boxes are positioned
// relative to vp.Origin and scaled by vp.Scale.
func (c *Canvas) Paint(root *layout.LayoutBox, vp Viewport) {
	if root == nil {
		return
	}
	if vp.Scale <= 0 {
		vp.Scale = 1
	}
	for _, cmd := range buildDisplayList(root) {
		cmd.Execute(c, vp)
	}
}

// DisplayCommand represents a single painting operation.
type DisplayCommand interface {
	Execute(c *Canvas, vp Viewport)
}

// SolidColorCommand paints a solid color rectangle.
type SolidColorCommand struct {
	Color color.RGBA
	Rect  layout.Rect
}

// Execute paints the solid color rectangle.
func (cmd *SolidColorCommand) Execute(c *Canvas, vp Viewport) {
	x, y, w, h := vp.project(cmd.Rect)
	c.FillRect(x, y, w, h, cmd.Color)
}

// BorderCommand paints solid borders around a rectangle.
type BorderCommand struct {
	Color  color.RGBA
	Rect   layout.Rect
	Widths layout.EdgeSizes
}

// Execute paints the borders.
func (cmd *BorderCommand) Execute(c *Canvas, vp Viewport) {
	r, e := cmd.Rect, cmd.Widths
	edges := []layout.Rect{
		{X: r.X, Y: r.Y, Width: r.Width, Height: e.Top},
		{X: r.X + r.Width - e.Right, Y: r.Y, Width: e.Right, Height: r.Height},
		{X: r.X, Y: r.Y + r.Height - e.Bottom, Width: r.Width, Height: e.Bottom},
		{X: r.X, Y: r.Y, Width: e.Left, Height: r.Height},
	}
	for _, edge := range edges {
		if edge.Width <= 0 || edge.Height <= 0 {
			continue
		}
		x, y, w, h := vp.project(edge)
		c.FillRect(x, y, w, h, cmd.Color)
	}
}

// TextCommand paints a text run as one bar per non-space character.
type TextCommand struct {
	Color color.RGBA
	Rect  layout.Rect
	Text  string
}

// Execute paints the glyph bars.
func (cmd *TextCommand) Execute(c *Canvas, vp Viewport) {
	fontSize := layout.DefaultFontSize
	advance := fontSize / 2
	lineHeight := fontSize * 1.25
	x, y := cmd.Rect.X, cmd.Rect.Y
	for _, r := range cmd.Text {
		if x+advance > cmd.Rect.X+cmd.Rect.Width+0.5 {
			x = cmd.Rect.X
			y += lineHeight
		}
		if r != ' ' && r != '\t' && r != '\n' {
			glyph := layout.Rect{X: x + 1, Y: y + lineHeight*0.25, Width: advance - 2, Height: lineHeight * 0.5}
			px, py, w, h := vp.project(glyph)
			c.FillRect(px, py, w, h, cmd.Color)
		}
		x += advance
	}
}

func (vp Viewport) project(r layout.Rect) (x, y, w, h int) {
	x0 := (r.X - vp.Origin.X) * vp.Scale
	y0 := (r.Y - vp.Origin.Y) * vp.Scale
	x1 := (r.X + r.Width - vp.Origin.X) * vp.Scale
	y1 := (r.Y + r.Height - vp.Origin.Y) * vp.Scale
	x, y = int(math.Round(x0)), int(math.Round(y0))
	return x, y, int(math.Round(x1)) - x, int(math.Round(y1)) - y
}

// buildDisplayList builds a list of display commands from the layout tree.
func buildDisplayList(root *layout.LayoutBox) []DisplayCommand {
	var list []DisplayCommand
	root.Walk(func(box *layout.LayoutBox) {
		node := box.StyledNode
		if box.BoxType == layout.TextBox {
			list = append(list, &TextCommand{
				Color: color.RGBA{0, 0, 0, 255},
				Rect:  box.Dimensions.Content,
				Text:  node.Text,
			})
			return
		}
		if bg, ok := ParseColor(node.Style["backgroundColor"]); ok && bg.A > 0 {
			list = append(list, &SolidColorCommand{Color: bg, Rect: box.Dimensions.BorderBox()})
		}
		if b := box.Dimensions.Border; b.Top+b.Right+b.Bottom+b.Left > 0 {
			col, ok := ParseColor(node.Style["borderColor"])
			if !ok {
				col = color.RGBA{0, 0, 0, 255}
			}
			list = append(list, &BorderCommand{Color: col, Rect: box.Dimensions.BorderBox(), Widths: b})
		}
	})
	return list
}

// SetPixel sets a single pixel on the canvas.
func (c *Canvas) SetPixel(x, y int, col color.RGBA) {
	if x >= 0 && x < c.Width && y >= 0 && y < c.Height {
		c.Pixels[y*c.Width+x] = col
	}
}

// SetPixelBlend sets a pixel with alpha compositing.
func (c *Canvas) SetPixelBlend(x, y int, col color.RGBA) {
	if x < 0 || x >= c.Width || y < 0 || y >= c.Height {
		return
	}

	idx := y*c.Width + x
	dst := c.Pixels[idx]

	// Porter-Duff source over
	srcA := float64(col.A) / 255.0
	dstA := float64(dst.A) / 255.0
	outA := srcA + dstA*(1-srcA)

	if outA == 0 {
		c.Pixels[idx] = color.RGBA{0, 0, 0, 0}
		return
	}

	blend := func(s, d uint8) uint8 {
		return uint8(math.Round((float64(s)*srcA + float64(d)*dstA*(1-srcA)) / outA))
	}
	c.Pixels[idx] = color.RGBA{
		R: blend(col.R, dst.R),
		G: blend(col.G, dst.G),
		B: blend(col.B, dst.B),
		A: uint8(math.Round(outA * 255)),
	}
}

// FillRect fills a rectangle with the given color, clipped to the canvas.
func (c *Canvas) FillRect(x, y, width, height int, col color.RGBA) {
	x1, y1 := max(x, 0), max(y, 0)
	x2, y2 := min(x+width, c.Width), min(y+height, c.Height)

	for py := y1; py < y2; py++ {
		for px := x1; px < x2; px++ {
			if col.A < 255 {
				c.SetPixelBlend(px, py, col)
			} else {
				c.Pixels[py*c.Width+px] = col
			}
		}
	}
}

// Clear clears the canvas to the given color.
func (c *Canvas) Clear(col color.RGBA) {
	for i := range c.Pixels {
		c.Pixels[i] = col
	}
}

// GetPixel returns the color of a pixel at the given coordinates.
func (c *Canvas) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= c.Width || y < 0 || y >= c.Height {
		return color.RGBA{0, 0, 0, 0}
	}
	return c.Pixels[y*c.Width+x]
}

// ToImage converts the canvas to a Go image.
func (c *Canvas) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			img.SetRGBA(x, y, c.Pixels[y*c.Width+x])
		}
	}
	return img
}

// EncodePNG encodes the canvas as PNG.
func (c *Canvas) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.ToImage()); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var namedColors = map[string]color.RGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"orange":      {255, 165, 0, 255},
	"purple":      {128, 0, 128, 255},
	"transparent": {0, 0, 0, 0},
}

// ParseColor understands named colors, #rgb, #rrggbb, rgb() and rgba().
func ParseColor(v string) (color.RGBA, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return color.RGBA{}, false
	}
	if c, ok := namedColors[v]; ok {
		return c, true
	}
	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.RGBA{}, false
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, false
		}
		return color.RGBA{uint8(n >> 16), uint8(n >> 8), uint8(n), 255}, true
	}
	for _, fn := range []string{"rgba(", "rgb("} {
		if !strings.HasPrefix(v, fn) || !strings.HasSuffix(v, ")") {
			continue
		}
		parts := strings.Split(v[len(fn):len(v)-1], ",")
		if len(parts) < 3 || len(parts) > 4 {
			return color.RGBA{}, false
		}
		var ch [4]float64
		ch[3] = 1
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return color.RGBA{}, false
			}
			ch[i] = f
		}
		clamp := func(f float64) uint8 { return uint8(math.Max(0, math.Min(255, math.Round(f)))) }
		return color.RGBA{clamp(ch[0]), clamp(ch[1]), clamp(ch[2]), clamp(ch[3] * 255)}, true
	}
	return color.RGBA{}, false
}
