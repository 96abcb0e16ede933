package tier

import (
	"testing"

	"github.com/billyribeiro-ux/vizcore/internal/config"
	"github.com/billyribeiro-ux/vizcore/internal/events"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViewport() seriesdata.Viewport {
	return seriesdata.Viewport{
		WidthPx:  1000,
		HeightPx: 500,
		Margins:  seriesdata.Margins{Top: 10, Right: 10, Bottom: 10, Left: 10},
		XScale:   seriesdata.LinearScale{DataMin: 0, DataMax: 1000, PixelMin: 0, PixelMax: 980},
		YScale:   seriesdata.LinearScale{DataMin: 0, DataMax: 100, PixelMin: 480, PixelMax: 0},
	}
}

func seriesWithPoints(id string, n int) seriesdata.Series {
	pts := make([]seriesdata.DataPoint, n)
	for i := 0; i < n; i++ {
		pts[i] = seriesdata.DataPoint{X: float64(i), Y: float64(i % 50)}
	}
	return seriesdata.Series{ID: id, Visible: true, Data: pts}
}

func newTestEngine(t *testing.T) (*Engine, *events.Bus, *surface.Mock, *surface.Mock, *surface.Mock) {
	t.Helper()
	opts := config.MustLoadDefaultOptions()
	bus := events.NewBus()
	e := NewEngine(opts, bus)
	vec, ras, accel := surface.NewMock("vector"), surface.NewMock("raster"), surface.NewMock("accelerated")
	e.RegisterSurface(config.TierVector, vec)
	e.RegisterSurface(config.TierRaster, ras)
	e.RegisterSurface(config.TierAccelerated, accel)
	return e, bus, vec, ras, accel
}

func TestSelectTier_PrimaryCountRule(t *testing.T) {
	th := config.Defaults(config.ClassDefault).Thresholds
	assert.Equal(t, config.TierVector, selectTier(th, 100, 0))
	assert.Equal(t, config.TierRaster, selectTier(th, 6000, 0))
	assert.Equal(t, config.TierAccelerated, selectTier(th, 60000, 0))
}

func TestSelectTier_PrimaryCountRuleIsInclusiveAtBoundary(t *testing.T) {
	th := config.Defaults(config.ClassDefault).Thresholds
	// Exactly at VecToRas/RasToAccel must escalate, per spec.md §4.4's
	// "total >= threshold" wording — not strictly greater.
	assert.Equal(t, config.TierRaster, selectTier(th, int(*th.VecToRas), 0))
	assert.Equal(t, config.TierAccelerated, selectTier(th, int(*th.RasToAccel), 0))
}

func TestSelectTier_DensitySecondaryRuleEscalates(t *testing.T) {
	th := config.Defaults(config.ClassDefault).Thresholds
	// Low count but points-per-pixel above the vector threshold (0.5)
	// and below the raster threshold (5) should escalate exactly once.
	assert.Equal(t, config.TierRaster, selectTier(th, 10, 1))
}

func TestSelectTier_ForceTierOverridesEverything(t *testing.T) {
	th := config.Defaults(config.ClassDefault).Thresholds
	forced := config.TierAccelerated
	th.ForceTier = &forced
	assert.Equal(t, config.TierAccelerated, selectTier(th, 1, 0))
}

func TestEngine_RenderPicksTierAndEmitsSwitch(t *testing.T) {
	e, bus, _, ras, _ := newTestEngine(t)
	ch, unreg := bus.Subscribe()
	defer unreg()

	series := []seriesdata.Series{seriesWithPoints("a", 6000)}
	metrics, err := e.Render(series, testViewport(), 0)
	require.NoError(t, err)
	assert.Equal(t, config.TierRaster, e.CurrentTier())
	_ = metrics
	require.Len(t, ras.Renders(), 1)

	ev := <-ch
	require.Equal(t, events.KindTierSwitch, ev.Type)
	payload := ev.Payload.(events.TierSwitchPayload)
	assert.Equal(t, "raster", payload.To)
}

func TestEngine_FallsBackWhenTierSurfaceMissing(t *testing.T) {
	opts := config.MustLoadDefaultOptions()
	bus := events.NewBus()
	e := NewEngine(opts, bus)
	vec := surface.NewMock("vector")
	e.RegisterSurface(config.TierVector, vec)
	// No raster/accelerated registered: a high-density render should
	// fall back to vector rather than error.
	series := []seriesdata.Series{seriesWithPoints("a", 60000)}
	_, err := e.Render(series, testViewport(), 0)
	require.NoError(t, err)
	assert.Equal(t, config.TierVector, e.CurrentTier())
}

func TestEngine_ErrorsWhenNoSurfaceRegistered(t *testing.T) {
	opts := config.MustLoadDefaultOptions()
	e := NewEngine(opts, events.NewBus())
	_, err := e.Render([]seriesdata.Series{seriesWithPoints("a", 10)}, testViewport(), 0)
	assert.Error(t, err)
}

func TestEngine_AutoDegradeStepsDownAfterConsecutiveDrops(t *testing.T) {
	e, bus, _, _, accel := newTestEngine(t)
	ch, unreg := bus.Subscribe()
	defer unreg()

	accel.FrameTimeMS = 100 // far above the 33.33ms budget, every frame drops
	series := []seriesdata.Series{seriesWithPoints("a", 60000)}

	var lastTier config.TierName
	for i := 0; i < 12; i++ {
		_, err := e.Render(series, testViewport(), int64(i)*int64(1e9))
		require.NoError(t, err)
		lastTier = e.CurrentTier()
	}
	assert.Equal(t, config.TierRaster, lastTier)

	sawPerformanceSwitch := false
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.KindTierSwitch {
				p := ev.Payload.(events.TierSwitchPayload)
				if p.Reason == events.ReasonPerformance {
					sawPerformanceSwitch = true
				}
			}
		default:
			assert.True(t, sawPerformanceSwitch, "expected a performance-reason tier switch event")
			return
		}
	}
}

func TestEngine_SetForceTierEmitsManualSwitch(t *testing.T) {
	e, bus, _, _, _ := newTestEngine(t)
	ch, unreg := bus.Subscribe()
	defer unreg()

	forced := config.TierAccelerated
	e.SetForceTier(&forced, 0)
	assert.Equal(t, config.TierAccelerated, e.CurrentTier())

	ev := <-ch
	payload := ev.Payload.(events.TierSwitchPayload)
	assert.Equal(t, events.ReasonManual, payload.Reason)
}

func TestEngine_LODChangeEmittedOnLevelTransition(t *testing.T) {
	e, bus, _, _, _ := newTestEngine(t)
	ch, unreg := bus.Subscribe()
	defer unreg()

	series := []seriesdata.Series{seriesWithPoints("a", 50)}
	_, err := e.Render(series, testViewport(), 0)
	require.NoError(t, err)

	sawLODChange := false
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.KindLODChange {
				sawLODChange = true
			}
		default:
			assert.True(t, sawLODChange)
			return
		}
	}
}
