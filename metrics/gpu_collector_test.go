package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockGPUReader struct {
	mu      sync.Mutex
	metrics GPUMetrics
	err     error
	calls   int
}

func (m *mockGPUReader) ReadGPUMetrics(ctx context.Context) (GPUMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.metrics, m.err
}

func (m *mockGPUReader) set(metrics GPUMetrics, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
	m.err = err
}

func TestNewGPUCollector_Defaults(t *testing.T) {
	c := NewGPUCollector(GPUCollectorConfig{CollectionInterval: 100 * time.Millisecond}, &mockGPUReader{}, nil, nil)

	if c.config.CollectionInterval != 5*time.Second {
		t.Errorf("CollectionInterval = %v, want 5s", c.config.CollectionInterval)
	}
	if len(c.history) != 720 {
		t.Errorf("history size = %d, want 720", len(c.history))
	}
}

func TestGPUCollector_CollectOnce(t *testing.T) {
	t.Run("stores sample and calls back", func(t *testing.T) {
		reader := &mockGPUReader{metrics: GPUMetrics{Utilization: 55}}
		var got []GPUMetrics
		c := NewGPUCollector(DefaultGPUCollectorConfig(), reader, func(m GPUMetrics) { got = append(got, m) }, nil)

		c.CollectOnce(context.Background())

		if !c.IsAvailable() {
			t.Error("expected available")
		}
		if c.GetCurrentMetrics().Utilization != 55 {
			t.Errorf("current = %+v", c.GetCurrentMetrics())
		}
		if len(got) != 1 {
			t.Errorf("callback calls = %d, want 1", len(got))
		}
	})

	t.Run("failure keeps last good sample", func(t *testing.T) {
		reader := &mockGPUReader{metrics: GPUMetrics{Utilization: 10}}
		c := NewGPUCollector(DefaultGPUCollectorConfig(), reader, nil, nil)
		c.CollectOnce(context.Background())

		reader.set(GPUMetrics{}, errors.New("no device"))
		c.CollectOnce(context.Background())

		if c.IsAvailable() {
			t.Error("expected unavailable after failure")
		}
		if c.GetLastError() == nil {
			t.Error("expected last error")
		}
		if c.GetCurrentMetrics().Utilization != 10 {
			t.Errorf("last good sample lost: %+v", c.GetCurrentMetrics())
		}
	})
}

func TestGPUCollector_History(t *testing.T) {
	reader := &mockGPUReader{}
	c := NewGPUCollector(GPUCollectorConfig{CollectionInterval: time.Second, HistorySize: 3}, reader, nil, nil)

	for i := 1; i <= 5; i++ {
		reader.set(GPUMetrics{Utilization: float64(i)}, nil)
		c.CollectOnce(context.Background())
	}

	got := c.GetHistory(10)
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("history len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Utilization != w {
			t.Errorf("history[%d] = %v, want %v", i, got[i].Utilization, w)
		}
	}

	if last := c.GetHistory(1); len(last) != 1 || last[0].Utilization != 5 {
		t.Errorf("GetHistory(1) = %+v", last)
	}
}

func TestGPUCollector_RunStopsOnCancel(t *testing.T) {
	reader := &mockGPUReader{}
	c := NewGPUCollector(GPUCollectorConfig{CollectionInterval: time.Second}, reader, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.calls < 1 {
		t.Error("expected an immediate sample")
	}
}

func TestParseNvidiaSMIOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
		want    GPUMetrics
	}{
		{
			name:   "valid line",
			output: "45, 67, 2048, 8192\n",
			want: GPUMetrics{
				Utilization: 45,
				Temperature: 67,
				MemoryUsed:  2048 * 1024 * 1024,
				MemoryTotal: 8192 * 1024 * 1024,
				MemoryFree:  6144 * 1024 * 1024,
			},
		},
		{name: "empty", output: "  \n", wantErr: true},
		{name: "too few fields", output: "45, 67", wantErr: true},
		{name: "not a number", output: "N/A, 67, 2048, 8192", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNvidiaSMIOutput(tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
