// Package ui shows headless host snapshots in a Fyne window.
package ui

import (
	"fmt"
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Source paints the current frame.
type Source func() *image.RGBA

// Viewer is a window that displays frames from a Source.
type Viewer struct {
	window fyne.Window
	source Source

	image      *canvas.Image
	scroll     *container.Scroll
	status     *widget.Label
	refreshBtn *widget.Button

	mu     sync.Mutex
	frames int
}

// NewViewer creates the window on a and paints the first frame.
func NewViewer(a fyne.App, title string, width, height float32, source Source) *Viewer {
	w := a.NewWindow(title)
	w.Resize(fyne.NewSize(width, height))

	v := &Viewer{
		window: w,
		source: source,
		image:  canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1))),
		status: widget.NewLabel(""),
	}
	v.image.FillMode = canvas.ImageFillOriginal
	v.image.ScaleMode = canvas.ImageScalePixels

	v.refreshBtn = widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), v.Refresh)
	v.scroll = container.NewScroll(v.image)
	toolbar := container.NewBorder(nil, nil, v.refreshBtn, nil, v.status)
	w.SetContent(container.NewBorder(toolbar, nil, nil, nil, v.scroll))

	// Ctrl+R: Refresh
	w.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyne.KeyR,
		Modifier: fyne.KeyModifierShortcutDefault,
	}, func(fyne.Shortcut) { v.Refresh() })

	v.Refresh()
	return v
}

// Refresh repaints from the source. It must run on the Fyne goroutine;
// use Show for calls from elsewhere.
func (v *Viewer) Refresh() {
	img := v.source()

	v.mu.Lock()
	v.frames++
	frames := v.frames
	v.mu.Unlock()

	v.image.Image = img
	v.image.SetMinSize(fyne.NewSize(float32(img.Bounds().Dx()), float32(img.Bounds().Dy())))
	v.image.Refresh()
	v.scroll.Refresh()
	v.status.SetText(fmt.Sprintf("%dx%d, frame %d", img.Bounds().Dx(), img.Bounds().Dy(), frames))
}

// Show schedules a Refresh from any goroutine.
func (v *Viewer) Show() {
	fyne.Do(v.Refresh)
}

// Frames returns how many frames have been painted.
func (v *Viewer) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Window returns the underlying window.
func (v *Viewer) Window() fyne.Window {
	return v.window
}

// ShowAndRun shows the window and blocks in the Fyne event loop.
func (v *Viewer) ShowAndRun() {
	v.window.ShowAndRun()
}
