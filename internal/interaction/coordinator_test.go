package interaction

import (
	"testing"
	"time"

	"github.com/billyribeiro-ux/vizcore/internal/config"
	"github.com/billyribeiro-ux/vizcore/internal/events"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/spatialindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViewport() seriesdata.Viewport {
	return seriesdata.Viewport{
		WidthPx:  220,
		HeightPx: 220,
		Margins:  seriesdata.Margins{Top: 10, Right: 10, Bottom: 10, Left: 10},
		XScale:   seriesdata.LinearScale{DataMin: 0, DataMax: 200, PixelMin: 0, PixelMax: 200},
		YScale:   seriesdata.LinearScale{DataMin: 0, DataMax: 200, PixelMin: 200, PixelMax: 0},
	}
}

func buildIndex(series []seriesdata.Series) *spatialindex.Index {
	return spatialindex.Build(series, testViewport(), spatialindex.DefaultHitRadiusPx)
}

// toPixel reproduces the Spatial Index's own data-to-pixel projection
// so tests can address points by pixel coordinate without hand
// computing the affine map.
func toPixel(x, y float64) (float64, float64) {
	vp := testViewport()
	return vp.XScale.ToPixel(x) - vp.Margins.Left, vp.YScale.ToPixel(y) - vp.Margins.Top
}

func fastDebounceOpts() config.InteractionOptions {
	ms := 5
	return config.InteractionOptions{
		HoverDebounceMS: &ms,
		ZoomDebounceMS:  &ms,
	}
}

func TestCoordinator_HoverDebounceResolvesNearest(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 50, Y: 50, ID: "p1"}}},
	}
	c := NewCoordinator(fastDebounceOpts(), nil)
	c.Attach(buildIndex(series), series)

	px, py := toPixel(50, 50)
	c.Hover(px, py) // pixel coords for data (50,50)
	time.Sleep(30 * time.Millisecond)

	hover := c.CurrentHover()
	assert.True(t, hover.Found)
	assert.Equal(t, "p1", hover.Hit.Point.ID)
	assert.Equal(t, StateHovering, c.State())
}

func TestCoordinator_HoverDebounceCollapsesRapidCalls(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 50, Y: 50, ID: "p1"}}},
	}
	c := NewCoordinator(fastDebounceOpts(), nil)
	c.Attach(buildIndex(series), series)

	for i := 0; i < 5; i++ {
		px, py := toPixel(50, 50)
		c.Hover(px, py)
		time.Sleep(time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)
	assert.True(t, c.CurrentHover().Found)
}

func TestCoordinator_ClickTogglesSelection(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 50, Y: 50, ID: "p1"}}},
	}
	c := NewCoordinator(config.InteractionOptions{}, nil)
	c.Attach(buildIndex(series), series)

	now := time.Now()
	px, py := toPixel(50, 50)
	c.Click(px, py, now)
	require.Len(t, c.Selection(), 1)

	c.Click(px, py, now.Add(time.Second)) // outside double-click window: toggles off
	assert.Len(t, c.Selection(), 0)
}

func TestCoordinator_DoubleClickPreservesSelectionAndEmitsZoomReset(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 50, Y: 50, ID: "p1"}}},
	}
	bus := events.NewBus()
	defer bus.Close()
	ch, unreg := bus.Subscribe()
	defer unreg()

	c := NewCoordinator(config.InteractionOptions{}, bus)
	c.Attach(buildIndex(series), series)

	now := time.Now()
	px, py := toPixel(50, 50)
	c.Click(px, py, now)
	require.Len(t, c.Selection(), 1)

	c.Click(px+1, py+1, now.Add(50*time.Millisecond))
	assert.Len(t, c.Selection(), 1, "double-click must not toggle selection")
	assert.Equal(t, StateIdle, c.State())

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindZoomReset, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("zoom-reset event never published")
	}
}

func TestCoordinator_BrushSelectsEnclosedPoints(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{
			{X: 10, Y: 10, ID: "p1"},
			{X: 50, Y: 50, ID: "p2"},
			{X: 190, Y: 190, ID: "p3"},
		}},
	}
	c := NewCoordinator(config.InteractionOptions{}, nil)
	c.Attach(buildIndex(series), series)

	// The brush rect is expressed in pixel space, but the Y scale above
	// is inverted (data 0 -> pixel 200), so derive both corners from
	// their data-space bounds instead of guessing pixel numbers: any
	// monotonic scale preserves interval membership either way.
	x1, y1 := toPixel(0, 0)
	x2, y2 := toPixel(100, 100)
	c.BrushBegin(x1, y1)
	mid := c.BrushUpdate(x2, y2)
	assert.Len(t, mid, 2)

	final := c.BrushEnd()
	assert.Len(t, final, 2)
	assert.Len(t, c.Selection(), 2)
	assert.Equal(t, StateIdle, c.State())
}

func TestCoordinator_KeyboardNavLeftRightWithinSeries(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{
			{X: 30, Y: 10, ID: "p1"},
			{X: 10, Y: 10, ID: "p2"},
			{X: 20, Y: 10, ID: "p3"},
		}},
	}
	c := NewCoordinator(config.InteractionOptions{}, nil)
	c.Attach(buildIndex(series), series)

	p, ok := c.NavCurrent()
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID) // sorted by X: p2(10) < p3(20) < p1(30)

	p, ok = c.KeyRight()
	require.True(t, ok)
	assert.Equal(t, "p3", p.ID)

	p, ok = c.KeyLeft()
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)

	// Left at the start clamps instead of wrapping.
	p, ok = c.KeyLeft()
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)
}

func TestCoordinator_KeyboardNavUpDownSwitchesSeries(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 1, Y: 1, ID: "a1"}}},
		{ID: "b", Visible: true, Data: []seriesdata.DataPoint{{X: 2, Y: 2, ID: "b1"}}},
	}
	c := NewCoordinator(config.InteractionOptions{}, nil)
	c.Attach(buildIndex(series), series)

	p, ok := c.KeyDown()
	require.True(t, ok)
	assert.Equal(t, "b1", p.ID)

	p, ok = c.KeyUp()
	require.True(t, ok)
	assert.Equal(t, "a1", p.ID)
}

func TestCoordinator_KeyEnterSelectsAndEscapeClears(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 1, Y: 1, ID: "a1"}}},
	}
	c := NewCoordinator(config.InteractionOptions{}, nil)
	c.Attach(buildIndex(series), series)

	_, ok := c.KeyEnter()
	require.True(t, ok)
	require.Len(t, c.Selection(), 1)

	c.KeyEscape()
	assert.Len(t, c.Selection(), 0)
	assert.Equal(t, StateIdle, c.State())
}

func TestCoordinator_KeyboardNavDisabledIsNoop(t *testing.T) {
	disabled := false
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 1, Y: 1, ID: "a1"}}},
	}
	c := NewCoordinator(config.InteractionOptions{KeyboardNavOn: &disabled}, nil)
	c.Attach(buildIndex(series), series)

	_, ok := c.KeyRight()
	assert.False(t, ok)
}

func TestCoordinator_AttachPreservesSelectionAcrossReattach(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 50, Y: 50, ID: "p1"}}},
	}
	c := NewCoordinator(config.InteractionOptions{}, nil)
	c.Attach(buildIndex(series), series)
	px, py := toPixel(50, 50)
	c.Click(px, py, time.Now())
	require.Len(t, c.Selection(), 1)

	// Simulate a tier switch: new index built, coordinator reattached.
	c.Attach(buildIndex(series), series)
	assert.Len(t, c.Selection(), 1)
	assert.Equal(t, StateIdle, c.State())
}

func TestCoordinator_RequestZoomRefineDebouncesToOneCall(t *testing.T) {
	c := NewCoordinator(fastDebounceOpts(), nil)
	calls := 0
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		c.RequestZoomRefine(func() {
			calls++
			close(done)
		})
		time.Sleep(time.Millisecond)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zoom refine never fired")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestCoordinator_HoverEmitsHoverChangedOnIdentityChange(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{
			{X: 50, Y: 50, ID: "p1"},
			{X: 150, Y: 150, ID: "p2"},
		}},
	}
	bus := events.NewBus()
	defer bus.Close()
	ch, unreg := bus.Subscribe()
	defer unreg()

	c := NewCoordinator(fastDebounceOpts(), bus)
	c.Attach(buildIndex(series), series)

	px, py := toPixel(50, 50)
	c.Hover(px, py)

	select {
	case ev := <-ch:
		require.Equal(t, events.KindHoverChanged, ev.Type)
		payload, ok := ev.Payload.(events.HoverChangedPayload)
		require.True(t, ok)
		assert.Equal(t, "p1", payload.PointID)
	case <-time.After(time.Second):
		t.Fatal("hover-changed never published")
	}

	// Re-hovering the same point must not re-emit.
	c.Hover(px, py)
	time.Sleep(30 * time.Millisecond)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event for same hover identity: %+v", ev)
	default:
	}
}

func TestCoordinator_MouseLeaveClearsHoverAndEmitsHoverCleared(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{{X: 50, Y: 50, ID: "p1"}}},
	}
	bus := events.NewBus()
	defer bus.Close()
	ch, unreg := bus.Subscribe()
	defer unreg()

	c := NewCoordinator(fastDebounceOpts(), bus)
	c.Attach(buildIndex(series), series)

	px, py := toPixel(50, 50)
	c.Hover(px, py)
	time.Sleep(30 * time.Millisecond)
	require.True(t, c.CurrentHover().Found)
	<-ch // drain hover-changed

	c.MouseLeave()
	assert.False(t, c.CurrentHover().Found)
	assert.Equal(t, StateIdle, c.State())

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindHoverCleared, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("hover-cleared never published")
	}
}

func TestCoordinator_MouseLeaveWithoutHoverEmitsNothing(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, unreg := bus.Subscribe()
	defer unreg()

	c := NewCoordinator(config.InteractionOptions{}, bus)
	c.MouseLeave()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event on leave with no prior hover: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCoordinator_WheelEmitsZoomIntentWithDirectionFactor(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, unreg := bus.Subscribe()
	defer unreg()

	c := NewCoordinator(fastDebounceOpts(), bus)
	c.Wheel(100, 50, true)

	select {
	case ev := <-ch:
		require.Equal(t, events.KindZoomIntent, ev.Type)
		payload, ok := ev.Payload.(events.ZoomIntentPayload)
		require.True(t, ok)
		assert.Equal(t, 1.1, payload.Factor)
		assert.Equal(t, 100.0, payload.AnchorX)
		assert.Equal(t, 50.0, payload.AnchorY)
	case <-time.After(time.Second):
		t.Fatal("zoom-intent never published")
	}

	c.Wheel(0, 0, false)
	select {
	case ev := <-ch:
		payload := ev.Payload.(events.ZoomIntentPayload)
		assert.Equal(t, 0.9, payload.Factor)
	case <-time.After(time.Second):
		t.Fatal("zoom-intent (down) never published")
	}
}
