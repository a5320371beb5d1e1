package sdruntime

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// PNG magic bytes for file identification
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Image validation errors
var (
	ErrImageEmpty      = errors.New("sdruntime: image data is empty")
	ErrImageNotPNG     = errors.New("sdruntime: image data is not a valid PNG")
	ErrImageDecodeFail = errors.New("sdruntime: failed to decode image")
)

// IsPNG checks if data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return len(data) >= len(pngMagic) && bytes.Equal(data[:len(pngMagic)], pngMagic)
}

// ValidateImageData reports whether data is a decodable PNG.
func ValidateImageData(data []byte) error {
	_, err := DecodePNG(data)
	return err
}

// DecodePNG decodes engine output bytes into an image.
func DecodePNG(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrImageEmpty
	}
	if !IsPNG(data) {
		return nil, ErrImageNotPNG
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecodeFail, err)
	}
	return img, nil
}

// EncodePNG encodes raw 8-bit pixels (3 = RGB, 4 = RGBA channels) as PNG.
func EncodePNG(pixels []byte, width, height, channels int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if len(pixels) != width*height*channels {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d", len(pixels), width*height*channels)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, o := 0, 0; i < len(pixels); i, o = i+channels, o+4 {
		img.Pix[o] = pixels[i]
		img.Pix[o+1] = pixels[i+1]
		img.Pix[o+2] = pixels[i+2]
		if channels == 4 {
			img.Pix[o+3] = pixels[i+3]
		} else {
			img.Pix[o+3] = 0xff
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
