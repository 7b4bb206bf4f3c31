package ui

import (
	"image"
	"image/color"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestViewerPaintsFirstFrame(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	frame := solid(40, 30, color.RGBA{R: 255, A: 255})
	v := NewViewer(a, "page", 320, 240, func() *image.RGBA { return frame })

	assert.Equal(t, 1, v.Frames())
	assert.Equal(t, "page", v.Window().Title())
	assert.Same(t, frame, v.image.Image)
	assert.Equal(t, "40x30, frame 1", v.status.Text)
	assert.EqualValues(t, 40, v.image.MinSize().Width)
}

func TestViewerRefreshPullsNewFrames(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	calls := 0
	v := NewViewer(a, "page", 320, 240, func() *image.RGBA {
		calls++
		return solid(10*calls, 10, color.RGBA{B: 255, A: 255})
	})
	require.Equal(t, 1, calls)

	test.Tap(v.refreshBtn)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, v.Frames())
	assert.Equal(t, "20x10, frame 2", v.status.Text)
	assert.Equal(t, 20, v.image.Image.Bounds().Dx())
}
