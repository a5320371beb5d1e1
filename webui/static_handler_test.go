package webui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func testStaticFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":  {Data: []byte("<html>generator</html>")},
		"css/app.css": {Data: []byte("body{}")},
		"js/app.js":   {Data: []byte("console.log(1)")},
	}
}

func TestStaticAssetHandler_ServeHTTP(t *testing.T) {
	handler := NewStaticAssetHandlerWithFS(testStaticFS(), DefaultStaticAssetConfig())

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		wantType    string
		wantBodySub string
	}{
		{"index", http.MethodGet, "/static/", http.StatusOK, "text/html; charset=utf-8", "generator"},
		{"css", http.MethodGet, "/static/css/app.css", http.StatusOK, "text/css; charset=utf-8", "body{}"},
		{"js", http.MethodGet, "/static/js/app.js", http.StatusOK, "application/javascript; charset=utf-8", "console"},
		{"missing", http.MethodGet, "/static/nope.png", http.StatusNotFound, "", ""},
		{"traversal stays inside", http.MethodGet, "/static/../../etc/passwd", http.StatusNotFound, "", ""},
		{"post rejected", http.MethodPost, "/static/js/app.js", http.StatusMethodNotAllowed, "", ""},
		{"head has no body", http.MethodHead, "/static/js/app.js", http.StatusOK, "application/javascript; charset=utf-8", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantType != "" && rec.Header().Get("Content-Type") != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", rec.Header().Get("Content-Type"), tt.wantType)
			}
			if tt.wantBodySub != "" && !strings.Contains(rec.Body.String(), tt.wantBodySub) {
				t.Errorf("body = %q", rec.Body.String())
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD wrote a body")
			}
		})
	}
}

func TestStaticAssetHandler_CacheControl(t *testing.T) {
	tests := []struct {
		name   string
		config StaticAssetConfig
		want   string
	}{
		{"cached", StaticAssetConfig{EnableCache: true, CacheMaxAge: 600}, "public, max-age=600"},
		{"uncached", StaticAssetConfig{}, "no-cache, no-store, must-revalidate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStaticAssetHandlerWithFS(testStaticFS(), tt.config)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
			if got := rec.Header().Get("Cache-Control"); got != tt.want {
				t.Errorf("Cache-Control = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStaticAssetHandler_EmbeddedIndex(t *testing.T) {
	h := NewStaticAssetHandler(DefaultStaticAssetConfig())
	rec := httptest.NewRecorder()
	h.ServeIndex()(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/static/js/app.js") {
		t.Error("embedded index does not load the app script")
	}
}
