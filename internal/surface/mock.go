package surface

import (
	"context"
	"sync"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
)

// RenderCall records one Render invocation's arguments, for tests that
// assert per-frame call shape (spec.md §9 "Tests substitute a
// recording mock surface to verify per-frame call shape").
type RenderCall struct {
	SeriesCount int
	Viewport    seriesdata.Viewport
}

// Mock is a recording Surface used by Tier Engine and engine tests. It never touches a real rendering library.
type Mock struct {
	BaseHitTest

	Name string

	mu          sync.Mutex
	initialized bool
	destroyed   bool
	renders     []RenderCall

	// InitDelay, when non-nil, makes Initialize complete asynchronously
	// by waiting for the channel to be sent/closed before signaling
	// readiness — used to exercise the async-initialization path.
	InitDelay <-chan struct{}
	InitErr   error

	FrameTimeMS float64
}

func NewMock(name string) *Mock {
	return &Mock{Name: name}
}

func (m *Mock) Initialize(ctx context.Context, handle Handle, viewport seriesdata.Viewport) <-chan error {
	done := make(chan error, 1)
	go func() {
		if m.InitDelay != nil {
			select {
			case <-m.InitDelay:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
		m.mu.Lock()
		m.initialized = true
		m.mu.Unlock()
		done <- m.InitErr
	}()
	return done
}

func (m *Mock) Render(series []seriesdata.Series, viewport seriesdata.Viewport, lodBySeriesID map[string]int) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders = append(m.renders, RenderCall{SeriesCount: len(series), Viewport: viewport})
	return Metrics{FrameTimeMS: m.FrameTimeMS}
}

func (m *Mock) Resize(widthPx, heightPx float64) {}

func (m *Mock) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
}

func (m *Mock) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *Mock) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

func (m *Mock) Renders() []RenderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RenderCall(nil), m.renders...)
}
