package postprocess

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Canvas is the drawing capability the watermark step needs.
type Canvas interface {
	// MeasureText returns the pixel width and height of text at scale.
	MeasureText(text string, scale float64) (width, height int)
	// DrawText draws text with its baseline-left corner at (x, y).
	DrawText(dst *image.RGBA, text string, x, y int, scale float64, c color.Color, thickness int)
	// Blend returns alpha*overlay + (1-alpha)*base per channel.
	Blend(overlay, base *image.RGBA, alpha float64) *image.RGBA
}

const (
	// pixelsPerScale maps a watermark scale of 1.0 to a font size in pixels.
	pixelsPerScale = 30.0
	// minFontSize keeps captions on small images legible.
	minFontSize = 10.0
)

// FontCanvas draws text with an OpenType font. Faces are cached per size.
type FontCanvas struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

var _ Canvas = (*FontCanvas)(nil)

// NewFontCanvas parses ttf. A nil ttf selects Go Regular.
func NewFontCanvas(ttf []byte) (*FontCanvas, error) {
	if ttf == nil {
		ttf = goregular.TTF
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &FontCanvas{font: f, faces: make(map[float64]font.Face)}, nil
}

var defaultCanvas = sync.OnceValues(func() (*FontCanvas, error) {
	return NewFontCanvas(nil)
})

// DefaultCanvas returns a shared FontCanvas using Go Regular.
func DefaultCanvas() (*FontCanvas, error) {
	return defaultCanvas()
}

func fontSize(scale float64) float64 {
	size := math.Round(scale * pixelsPerScale)
	if size < minFontSize {
		return minFontSize
	}
	return size
}

// faceLocked returns the cached face for scale. c.mu must be held; faces
// are not safe for concurrent use.
func (c *FontCanvas) faceLocked(scale float64) font.Face {
	size := fontSize(scale)
	if face, ok := c.faces[size]; ok {
		return face
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		// NewFace only fails on invalid options; the options above are fixed.
		panic(fmt.Sprintf("postprocess: create font face: %v", err))
	}
	c.faces[size] = face
	return face
}

// MeasureText implements Canvas.
func (c *FontCanvas) MeasureText(text string, scale float64) (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	face := c.faceLocked(scale)
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Ascent.Ceil()
	return width, height
}

// DrawText implements Canvas. thickness > 1 repeats the glyphs shifted one
// pixel right per extra unit to thicken strokes.
func (c *FontCanvas) DrawText(dst *image.RGBA, text string, x, y int, scale float64, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	face := c.faceLocked(scale)
	for dx := 0; dx < thickness; dx++ {
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(col),
			Face: face,
			Dot:  fixed.P(x+dx, y),
		}
		d.DrawString(text)
	}
}

// Blend implements Canvas.
func (c *FontCanvas) Blend(overlay, base *image.RGBA, alpha float64) *image.RGBA {
	return BlendRGBA(overlay, base, alpha)
}

// BlendRGBA computes alpha*overlay + (1-alpha)*base for every channel,
// rounded and clamped to [0, 255]. Both images must share bounds; the
// result is opaque.
func BlendRGBA(overlay, base *image.RGBA, alpha float64) *image.RGBA {
	b := base.Bounds()
	out := image.NewRGBA(b)
	beta := 1 - alpha

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			oi := overlay.PixOffset(x, y)
			bi := base.PixOffset(x, y)
			di := out.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				v := alpha*float64(overlay.Pix[oi+ch]) + beta*float64(base.Pix[bi+ch])
				out.Pix[di+ch] = clampByte(v)
			}
			out.Pix[di+3] = 0xff
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
