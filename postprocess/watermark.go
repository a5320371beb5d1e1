package postprocess

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Watermark settings.
const (
	Caption          = "AI Generated - Talrn Task"
	WatermarkMargin  = 10
	WatermarkAlpha   = 0.4
	WatermarkStroke  = 2
	watermarkDivisor = 1000.0
)

// NormalizeRGB converts img to an opaque 8-bit RGB image with bounds at the
// origin. Alpha is dropped, not composited: each pixel keeps its
// un-premultiplied colour.
func NormalizeRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	out := image.NewRGBA(nrgba.Bounds())
	for i := 0; i < len(nrgba.Pix); i += 4 {
		out.Pix[i] = nrgba.Pix[i]
		out.Pix[i+1] = nrgba.Pix[i+1]
		out.Pix[i+2] = nrgba.Pix[i+2]
		out.Pix[i+3] = 0xff
	}
	return out
}

// WatermarkScale is the caption scale for an image of the given size.
func WatermarkScale(width, height int) float64 {
	return float64(max(width, height)) / watermarkDivisor
}

// Watermark returns a copy of img with text drawn at the bottom-right
// corner and blended in at WatermarkAlpha. The result has the same size as
// img and is always opaque RGB.
func Watermark(canvas Canvas, img image.Image, text string) *image.RGBA {
	base := NormalizeRGB(img)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()

	overlay := image.NewRGBA(base.Bounds())
	copy(overlay.Pix, base.Pix)

	scale := WatermarkScale(w, h)
	textW, _ := canvas.MeasureText(text, scale)
	x := w - textW - WatermarkMargin
	y := h - WatermarkMargin

	canvas.DrawText(overlay, text, x, y, scale, color.White, WatermarkStroke)

	return canvas.Blend(overlay, base, WatermarkAlpha)
}
