package imagegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"text2image/sdruntime"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// rewriteTransport sends every request to target, keeping the path, so
// that clients configured for a public host reach an httptest server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func clientFor(t *testing.T, server *httptest.Server) *http.Client {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Transport: rewriteTransport{target: u}}
}

// fakeEngine records requests and returns solid images.
type fakeEngine struct {
	mu       sync.Mutex
	requests []sdruntime.EngineRequest
	err      error
	onCall   func()
}

var _ sdruntime.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) Generate(ctx context.Context, req sdruntime.EngineRequest) ([]image.Image, error) {
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	images := make([]image.Image, req.NumImages)
	for i := range images {
		images[i] = solidImage(64, 48, color.RGBA{R: 40, G: 80, B: 120, A: 255})
	}
	return images, nil
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) calls() []sdruntime.EngineRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sdruntime.EngineRequest(nil), f.requests...)
}
