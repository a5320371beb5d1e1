// procedural_provider.go implements a pure-Go preview engine that paints
// smooth colour fields from the request's random source. It needs no model
// or network and reproduces its output exactly for a fixed seed and prompt.
package imagegen

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math/rand/v2"

	"text2image/sdruntime"

	xdraw "golang.org/x/image/draw"
)

// DefaultProceduralSize is the square output size of the procedural engine.
const DefaultProceduralSize = 512

// ProceduralProvider implements sdruntime.Engine without a model.
type ProceduralProvider struct {
	size int
}

var _ sdruntime.Engine = (*ProceduralProvider)(nil)

// NewProceduralProvider returns an engine producing size x size images.
// size <= 0 selects DefaultProceduralSize.
func NewProceduralProvider(size int) *ProceduralProvider {
	if size <= 0 {
		size = DefaultProceduralSize
	}
	return &ProceduralProvider{size: size}
}

// Name implements sdruntime.Engine.
func (p *ProceduralProvider) Name() string { return "procedural" }

// Close implements sdruntime.Engine.
func (p *ProceduralProvider) Close() error { return nil }

// Generate paints req.NumImages images. The colour grid resolution follows
// req.Steps; req.Rand drives the colours when a seed is set.
func (p *ProceduralProvider) Generate(ctx context.Context, req sdruntime.EngineRequest) ([]image.Image, error) {
	if req.NumImages < 1 {
		return nil, fmt.Errorf("imagegen: at least one image must be requested")
	}

	rng := req.Rand
	if rng == nil {
		rng = sdruntime.NewRand(sdruntime.RandomSeed())
	}
	tint := promptTint(req.Prompt)
	cells := gridCells(req.Steps)

	images := make([]image.Image, 0, req.NumImages)
	for range req.NumImages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		images = append(images, p.paint(rng, tint, cells))
	}
	return images, nil
}

func (p *ProceduralProvider) paint(rng *rand.Rand, tint color.RGBA, cells int) *image.RGBA {
	grid := image.NewRGBA(image.Rect(0, 0, cells, cells))
	for y := range cells {
		for x := range cells {
			grid.SetRGBA(x, y, color.RGBA{
				R: mix(tint.R, uint8(rng.IntN(256))),
				G: mix(tint.G, uint8(rng.IntN(256))),
				B: mix(tint.B, uint8(rng.IntN(256))),
				A: 255,
			})
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, p.size, p.size))
	xdraw.CatmullRom.Scale(out, out.Bounds(), grid, grid.Bounds(), xdraw.Src, nil)
	return out
}

// promptTint derives a stable base colour from the prompt text.
func promptTint(prompt string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	sum := h.Sum32()
	return color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 255}
}

// gridCells maps an inference step count to a grid resolution in [4, 16].
func gridCells(steps int) int {
	return min(4+max(steps, 0)/4, 16)
}

func mix(a, b uint8) uint8 {
	return uint8((uint16(a) + uint16(b)) / 2)
}
