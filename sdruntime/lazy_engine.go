package sdruntime

import (
	"context"
	"image"
	"sync"
)

// EngineFactory builds an Engine. It is called at most once per successful
// load of a LazyEngine.
type EngineFactory func() (Engine, error)

// LazyEngine is the process-wide engine handle. The underlying engine is
// created on first use and reused for every later generation until Close.
//
// A failed load is not cached: the next call tries the factory again.
// Generate holds the handle exclusively for the whole call, so at most one
// generation runs against the engine at a time.
type LazyEngine struct {
	mu      sync.Mutex
	name    string
	factory EngineFactory
	engine  Engine
	closed  bool
	loads   int
}

var _ Engine = (*LazyEngine)(nil)

// NewLazyEngine returns a handle that will call factory on first use.
// name is reported by Name until the engine is loaded.
func NewLazyEngine(name string, factory EngineFactory) *LazyEngine {
	return &LazyEngine{name: name, factory: factory}
}

// Generate loads the engine if needed and runs req on it.
func (l *LazyEngine) Generate(ctx context.Context, req EngineRequest) ([]image.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	engine, err := l.loadLocked()
	if err != nil {
		return nil, err
	}
	return engine.Generate(ctx, req)
}

// Load forces initialisation without generating, for warm-up at start-up.
func (l *LazyEngine) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.loadLocked()
	return err
}

func (l *LazyEngine) loadLocked() (Engine, error) {
	if l.closed {
		return nil, ErrEngineClosed
	}
	if l.engine != nil {
		return l.engine, nil
	}

	engine, err := l.factory()
	if err != nil {
		return nil, err
	}
	l.engine = engine
	l.loads++
	return engine, nil
}

// Name returns the loaded engine's name, or the configured name before load.
func (l *LazyEngine) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.engine != nil {
		return l.engine.Name()
	}
	return l.name
}

// Loaded reports whether the engine has been created.
func (l *LazyEngine) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine != nil
}

// Loads returns how many times the factory succeeded.
func (l *LazyEngine) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// Close releases the engine. Later calls to Generate return ErrEngineClosed.
// Close is safe to call multiple times.
func (l *LazyEngine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.engine == nil {
		return nil
	}
	err := l.engine.Close()
	l.engine = nil
	return err
}
