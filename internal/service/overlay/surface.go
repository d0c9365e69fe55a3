// Package overlay draws bounding boxes and labels on a transparent surface
// that the browser layers over the live video.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"camdetect/internal/model"
)

// Surface is a 2D drawing target sized to the source frame.
type Surface interface {
	Resize(width, height int)
	Size() (int, int)
	Clear()
	DrawRect(box model.Box)
	DrawText(text string, x, y int)
}

// Render clears the surface and draws one rectangle and label per detection.
func Render(s Surface, detections []model.Detection) {
	s.Clear()
	for _, d := range detections {
		s.DrawRect(d.Box)
		y := d.Box.Y - 4
		if y < labelSize {
			y = d.Box.Y + labelSize
		}
		s.DrawText(Label(d), d.Box.X, y)
	}
}

// Label is the text drawn next to a box.
func Label(d model.Detection) string {
	return fmt.Sprintf("%s %.0f%%", d.Label, d.Confidence*100)
}

const (
	labelSize = 14
	lineWidth = 2
)

var (
	boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	faceOnce sync.Once
	face     font.Face
)

func labelFace() font.Face {
	faceOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			panic(err)
		}
		face = truetype.NewFace(f, &truetype.Options{Size: labelSize})
	})
	return face
}

// Canvas is a Surface backed by a gg context with a transparent background.
type Canvas struct {
	dc *gg.Context
	mu sync.Mutex
}

// NewCanvas creates an empty canvas; it gets a size on the first Resize.
func NewCanvas() *Canvas {
	return &Canvas{dc: gg.NewContext(1, 1)}
}

// Resize recreates the drawing context when the size changes. Repeating the
// same size is a no-op.
func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}
	if c.dc.Width() == width && c.dc.Height() == height {
		return
	}
	c.dc = gg.NewContext(width, height)
}

// Size returns the current canvas dimensions.
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.Width(), c.dc.Height()
}

// Clear erases everything drawn on the canvas.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.SetColor(color.Transparent)
	c.dc.Clear()
}

// DrawRect strokes the outline of box.
func (c *Canvas) DrawRect(box model.Box) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.SetColor(boxColor)
	c.dc.SetLineWidth(lineWidth)
	c.dc.DrawRectangle(float64(box.X), float64(box.Y), float64(box.Width), float64(box.Height))
	c.dc.Stroke()
}

// DrawText writes text with its baseline at (x, y).
func (c *Canvas) DrawText(text string, x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.SetFontFace(labelFace())
	c.dc.SetColor(boxColor)
	c.dc.DrawString(text, float64(x), float64(y))
}

// Image returns a copy of the canvas contents.
func (c *Canvas) Image() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// EncodePNG writes the canvas as a PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.EncodePNG(w)
}
