package postprocess

import (
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	// MetadataFile is the sidecar written into every run directory.
	MetadataFile = "metadata.json"

	// JPEGQuality is the quality of the JPEG copy of each image.
	JPEGQuality = 95

	// TimestampLayout is the ISO-8601 local timestamp stored in metadata.
	TimestampLayout = "2006-01-02T15:04:05.000000"
)

// Params is the "params" object of metadata.json.
type Params struct {
	NumImages     int     `json:"num_images"`
	GuidanceScale float64 `json:"guidance_scale"`
	Steps         int     `json:"steps"`
	Style         string  `json:"style"`
	Seed          *uint64 `json:"seed"`
}

// Record is the content of metadata.json.
type Record struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Params         Params `json:"params"`
	Timestamp      string `json:"timestamp"`
	NumImages      int    `json:"num_images"`
}

// SavedImagePair holds the paths of one saved image.
type SavedImagePair struct {
	Index int    `json:"index"`
	PNG   string `json:"png"`
	JPEG  string `json:"jpg"`
}

// Finalizer watermarks and saves generated images.
type Finalizer struct {
	Canvas  Canvas
	Caption string
	Now     func() time.Time
	Logger  *zap.Logger
}

// NewFinalizer returns a Finalizer using the default canvas and caption.
func NewFinalizer(logger *zap.Logger) (*Finalizer, error) {
	canvas, err := DefaultCanvas()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{
		Canvas:  canvas,
		Caption: Caption,
		Now:     time.Now,
		Logger:  logger,
	}, nil
}

// Finalize writes metadata.json, then {base}_{n}.png and {base}_{n}.jpg for
// each image (n from 1), into runDir. The directory must already exist.
//
// The metadata is written first, so a failure while saving images leaves it
// behind along with any images already saved. Every error wraps
// ErrPersistence.
func (f *Finalizer) Finalize(images []image.Image, runDir, prompt, negativePrompt string, params Params, baseFilename string) ([]SavedImagePair, error) {
	base := SanitizeBaseFilename(baseFilename)

	record := Record{
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		Params:         params,
		Timestamp:      f.Now().Format(TimestampLayout),
		NumImages:      len(images),
	}
	if err := writeRecord(runDir, record); err != nil {
		return nil, err
	}

	saved := make([]SavedImagePair, 0, len(images))
	for i, img := range images {
		marked := Watermark(f.Canvas, img, f.Caption)

		pair := SavedImagePair{
			Index: i + 1,
			PNG:   filepath.Join(runDir, fmt.Sprintf("%s_%d.png", base, i+1)),
			JPEG:  filepath.Join(runDir, fmt.Sprintf("%s_%d.jpg", base, i+1)),
		}
		if err := writePNG(pair.PNG, marked); err != nil {
			return saved, err
		}
		if err := writeJPEG(pair.JPEG, marked); err != nil {
			return saved, err
		}
		saved = append(saved, pair)

		f.Logger.Debug("image saved",
			zap.Int("index", pair.Index),
			zap.String("png", pair.PNG),
			zap.String("jpg", pair.JPEG))
	}

	return saved, nil
}

func writeRecord(runDir string, record Record) error {
	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", ErrPersistence, err)
	}
	path := filepath.Join(runDir, MetadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, path, err)
	}
	return nil
}

// ReadRecord loads metadata.json from runDir.
func ReadRecord(runDir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(runDir, MetadataFile))
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadataFile, err)
	}
	return &record, nil
}

func writePNG(path string, img image.Image) error {
	return writeImage(path, func(f *os.File) error { return png.Encode(f, img) })
}

func writeJPEG(path string, img image.Image) error {
	return writeImage(path, func(f *os.File) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality})
	})
}

func writeImage(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersistence, path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrPersistence, path, err)
	}
	return nil
}
