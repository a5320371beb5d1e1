package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"text2image/db"
	"text2image/imagegen"
	"text2image/metrics"
	"text2image/policy"
	"text2image/postprocess"
	"text2image/sdruntime"
	"text2image/shutdown"

	"go.uber.org/zap/zaptest"
)

const testRun = "20260101_120000"

// fakeGenerator writes placeholder files so download routes have
// something to serve.
type fakeGenerator struct {
	outputDir string
	err       error
	got       imagegen.Request
}

func (g *fakeGenerator) EngineName() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error) {
	g.got = req
	if g.err != nil {
		return nil, g.err
	}
	if req.Progress != nil {
		req.Progress(imagegen.ProgressUpdate{Step: 1, Total: 1, Percent: 100})
	}

	runDir := filepath.Join(g.outputDir, testRun)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}
	base := postprocess.SanitizeBaseFilename(req.Filename)
	var saved []postprocess.SavedImagePair
	for i := 1; i <= req.NumImages; i++ {
		pair := postprocess.SavedImagePair{
			Index: i,
			PNG:   filepath.Join(runDir, fmt.Sprintf("%s_%d.png", base, i)),
			JPEG:  filepath.Join(runDir, fmt.Sprintf("%s_%d.jpg", base, i)),
		}
		os.WriteFile(pair.PNG, []byte("png-bytes"), 0o644)
		os.WriteFile(pair.JPEG, []byte("jpg-bytes"), 0o644)
		saved = append(saved, pair)
	}

	return &imagegen.Result{
		RunID:   "run-1",
		Prompt:  req.Prompt + ", photorealistic",
		Elapsed: 1234 * time.Millisecond,
		RunDir:  runDir,
		Saved:   saved,
	}, nil
}

type fakeRuns struct {
	rows []db.RunRow
	err  error
}

func (f *fakeRuns) ListRecent(ctx context.Context, limit int) ([]db.RunRow, error) {
	if len(f.rows) > limit {
		return f.rows[:limit], f.err
	}
	return f.rows, f.err
}

// fakeAuth accepts requests carrying the "ok" cookie.
type fakeAuth struct{}

func (fakeAuth) IsAuthenticated(r *http.Request) bool {
	c, err := r.Cookie("ok")
	return err == nil && c.Value == "1"
}

func (a fakeAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.IsAuthenticated(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a fakeAuth) MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc {
	return a.Middleware(next).ServeHTTP
}

func (fakeAuth) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("login")) }
}

func (fakeAuth) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {}
}

type testEnv struct {
	server    *Server
	generator *fakeGenerator
	store     *metrics.Store
	outputDir string
}

func newTestEnv(t *testing.T, deps Dependencies) *testEnv {
	t.Helper()
	outputDir := t.TempDir()
	gen := &fakeGenerator{outputDir: outputDir}
	store := metrics.NewStore(metrics.StoreConfig{Version: "1.0.0"}, time.Now())

	deps.Generator = gen
	deps.Metrics = store
	s, err := NewServer(DefaultServerConfig(outputDir), deps, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return &testEnv{server: s, generator: gen, store: store, outputDir: outputDir}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewServer_Validation(t *testing.T) {
	if _, err := NewServer(DefaultServerConfig("out"), Dependencies{}, nil); err == nil {
		t.Error("expected error without generator")
	}
	if _, err := NewServer(DefaultServerConfig(""), Dependencies{Generator: &fakeGenerator{}}, nil); err == nil {
		t.Error("expected error without output dir")
	}

	s, err := NewServer(DefaultServerConfig("out"), Dependencies{Generator: &fakeGenerator{}}, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if s.Addr() != "127.0.0.1:8501" {
		t.Errorf("Addr() = %q", s.Addr())
	}
	if s.HasAuth() {
		t.Error("HasAuth() = true without provider")
	}
}

func TestServer_HealthAndIndex(t *testing.T) {
	env := newTestEnv(t, Dependencies{})

	if rec := env.do(t, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Text to Image") {
		t.Errorf("/ status = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("/nope status = %d", rec.Code)
	}
}

func TestServer_Options(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	rec := env.do(t, http.MethodGet, "/api/options", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	opts := decode[OptionsResponse](t, rec)
	if opts.Engine != "fake" || opts.DefaultFilename != DefaultFilename {
		t.Errorf("options = %+v", opts)
	}
	if len(opts.Styles) != 4 || opts.DefaultStyle != "Photorealistic" {
		t.Errorf("styles = %v default %q", opts.Styles, opts.DefaultStyle)
	}
	if len(opts.Modes) != 2 {
		t.Fatalf("modes = %+v", opts.Modes)
	}
	fast, quality := opts.Modes[0], opts.Modes[1]
	if fast.Guidance != nil || fast.Steps.Max != sdruntime.MaxFastSteps {
		t.Errorf("fast = %+v", fast)
	}
	if quality.Guidance == nil || quality.Guidance.Default != sdruntime.DefaultGuidance || quality.Steps.Step != 5 {
		t.Errorf("quality = %+v", quality)
	}
	if opts.Seed.Max != sdruntime.MaxSeed || opts.Seed.Default != sdruntime.DefaultSeed {
		t.Errorf("seed = %+v", opts.Seed)
	}
}

func TestServer_Generate(t *testing.T) {
	env := newTestEnv(t, Dependencies{})

	rec := env.do(t, http.MethodPost, "/api/generate", GenerateRequest{
		Prompt:    "a red fox",
		Style:     "Photorealistic",
		Mode:      "fast",
		NumImages: 2,
		Steps:     4,
		Filename:  "fox",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	resp := decode[GenerateResponse](t, rec)
	if resp.Elapsed != "1.23 seconds" {
		t.Errorf("Elapsed = %q", resp.Elapsed)
	}
	if len(resp.Images) != 2 {
		t.Fatalf("images = %+v", resp.Images)
	}
	if want := "/api/runs/" + testRun + "/fox_2.jpg"; resp.Images[1].JPGURL != want {
		t.Errorf("JPGURL = %q, want %q", resp.Images[1].JPGURL, want)
	}
	if env.generator.got.Mode != sdruntime.ModeFast || env.generator.got.Progress == nil {
		t.Errorf("request = %+v", env.generator.got)
	}

	m := env.store.GetGenerationMetrics()
	if m.TotalSuccess != 1 || m.ImagesProduced != 2 {
		t.Errorf("metrics = %+v", m)
	}

	initial := env.server.API().InitialState().Data.(InitialData)
	if len(initial.Recent) != 1 || initial.Recent[0].Run != testRun {
		t.Errorf("recent = %+v", initial.Recent)
	}
}

func TestServer_GenerateErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		genErr     error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"bad json", "{", nil, http.StatusBadRequest, CodeConfiguration, ""},
		{"unknown mode", GenerateRequest{Prompt: "x", Mode: "slow"}, nil, http.StatusBadRequest, CodeConfiguration, ""},
		{"policy", GenerateRequest{Prompt: "x", Mode: "fast"}, imagegen.ErrPolicyRejection, http.StatusUnprocessableEntity, CodePolicy, policy.RejectionMessage},
		{"configuration", GenerateRequest{Prompt: "x", Mode: "quality"}, fmt.Errorf("%w: steps out of range", sdruntime.ErrConfiguration), http.StatusBadRequest, CodeConfiguration, ""},
		{"synthesis", GenerateRequest{Prompt: "x", Mode: "fast"}, fmt.Errorf("%w: oom", sdruntime.ErrSynthesis), http.StatusInternalServerError, CodeSynthesis, "image generation failed"},
		{"persistence", GenerateRequest{Prompt: "x", Mode: "fast"}, fmt.Errorf("%w: disk full", postprocess.ErrPersistence), http.StatusInternalServerError, CodePersistence, "saving the images failed"},
		{"shutting down", GenerateRequest{Prompt: "x", Mode: "fast"}, shutdown.ErrTrackerClosed, http.StatusServiceUnavailable, CodeUnavailable, "server is shutting down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Dependencies{})
			env.generator.err = tt.genErr

			rec := env.do(t, http.MethodPost, "/api/generate", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && resp.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantMsg)
			}
		})
	}
}

func TestServer_GenerateMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	if rec := env.do(t, http.MethodGet, "/api/generate", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestServer_RunFile(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	env.do(t, http.MethodPost, "/api/generate", GenerateRequest{Prompt: "fox", Mode: "fast", NumImages: 1, Filename: DefaultFilename})

	t.Run("inline png", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/runs/"+testRun+"/my_image_1.png", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
			t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != "" {
			t.Errorf("unexpected Content-Disposition %q", cd)
		}
	})

	t.Run("download jpg", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/runs/"+testRun+"/my_image_1.jpg?download=1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="generated_1.jpg"` {
			t.Errorf("Content-Disposition = %q", cd)
		}
	})

	for _, target := range []string{
		"/api/runs/" + testRun + "/missing_1.png",
		"/api/runs/not-a-run/my_image_1.png",
		"/api/runs/" + testRun + "/my_image_1.txt",
	} {
		if rec := env.do(t, http.MethodGet, target, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestDownloadName(t *testing.T) {
	tests := map[string]string{
		"my_image_1.png": "generated_1.png",
		"fox_4.jpg":      "generated_4.jpg",
		"metadata.json":  "metadata.json",
		"fox_x.png":      "fox_x.png",
		"fox_0.png":      "fox_0.png",
	}
	for in, want := range tests {
		if got := DownloadName(in); got != want {
			t.Errorf("DownloadName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServer_Runs(t *testing.T) {
	t.Run("from history", func(t *testing.T) {
		runs := &fakeRuns{rows: []db.RunRow{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
		env := newTestEnv(t, Dependencies{Runs: runs})

		resp := decode[RunsResponse](t, env.do(t, http.MethodGet, "/api/runs?limit=2", nil))
		if resp.Count != 2 || resp.Limit != 2 || resp.Runs[0].ID != "a" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("history failure", func(t *testing.T) {
		env := newTestEnv(t, Dependencies{Runs: &fakeRuns{err: errors.New("db closed")}})
		if rec := env.do(t, http.MethodGet, "/api/runs", nil); rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("from directories", func(t *testing.T) {
		env := newTestEnv(t, Dependencies{})
		for _, d := range []string{"20260101_090000", "20260102_090000", "notes"} {
			os.MkdirAll(filepath.Join(env.outputDir, d), 0o755)
		}

		resp := decode[RunsResponse](t, env.do(t, http.MethodGet, "/api/runs", nil))
		want := []string{"20260102_090000", "20260101_090000"}
		if resp.Count != 2 || resp.RunDirs[0] != want[0] || resp.RunDirs[1] != want[1] {
			t.Errorf("resp = %+v", resp)
		}
	})
}

func TestServer_Status(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	env.store.RecordGeneration(metrics.GenerationRecord{Mode: "fast", Outcome: metrics.OutcomeSuccess, NumImages: 1})

	resp := decode[StatusResponse](t, env.do(t, http.MethodGet, "/api/status", nil))
	if resp.Health != metrics.SystemHealthRunning || resp.Engine != "fake" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Generations == nil || resp.Generations.TotalSuccess != 1 {
		t.Errorf("generations = %+v", resp.Generations)
	}
}

func TestServer_Auth(t *testing.T) {
	env := newTestEnv(t, Dependencies{Auth: fakeAuth{}})

	rec := env.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/login" {
		t.Errorf("/ status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := env.do(t, http.MethodGet, "/api/options", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("/api/options status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/login", nil); rec.Body.String() != "login" {
		t.Errorf("/login body = %q", rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/options", nil)
	req.AddCookie(&http.Cookie{Name: "ok", Value: "1"})
	authed := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(authed, req)
	if authed.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", authed.Code)
	}
	if !decode[OptionsResponse](t, authed).AuthEnabled {
		t.Error("AuthEnabled = false")
	}
}
