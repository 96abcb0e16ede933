// Package tier implements the Tier Engine: per-frame selection of a
// render tier (vector/raster/accelerated), LOD downsampling of the
// series about to be rendered, frame-metric recording, auto-degrade
// under sustained frame drops, and event emission for every tier or
// LOD change.
package tier

import (
	"fmt"
	"sync"

	"github.com/billyribeiro-ux/vizcore/internal/config"
	"github.com/billyribeiro-ux/vizcore/internal/events"
	"github.com/billyribeiro-ux/vizcore/internal/lod"
	"github.com/billyribeiro-ux/vizcore/internal/perf"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/surface"
)

// tierOrder lists the three tiers from least to most capable; index
// arithmetic on this slice drives fallback walk-down and auto-degrade.
var tierOrder = [3]config.TierName{config.TierVector, config.TierRaster, config.TierAccelerated}

func tierIndex(t config.TierName) int {
	for i, candidate := range tierOrder {
		if candidate == t {
			return i
		}
	}
	return 0
}

// reevaluateEveryNFrames forces a tier re-decision periodically even
// when density hasn't moved, so a long-lived engine doesn't stay
// pinned to a stale tier choice forever.
const reevaluateEveryNFrames = 30

// densityDeltaThreshold is the minimum change in total point count
// that forces an out-of-cadence re-evaluation.
const densityDeltaThreshold = 1000

// selectTier applies the threshold table's primary (absolute count)
// and secondary (points-per-pixel) rules. A non-nil ForceTier
// overrides both.
func selectTier(th config.ThresholdOptions, totalPoints int, pointsPerPixel float64) config.TierName {
	if th.ForceTier != nil {
		return *th.ForceTier
	}
	t := config.TierVector
	if th.VecToRas != nil && int64(totalPoints) >= *th.VecToRas {
		t = config.TierRaster
	}
	if th.RasToAccel != nil && int64(totalPoints) >= *th.RasToAccel {
		t = config.TierAccelerated
	}
	if t == config.TierVector && th.PPPVec != nil && pointsPerPixel >= *th.PPPVec {
		t = config.TierRaster
	}
	if t == config.TierRaster && th.PPPRas != nil && pointsPerPixel >= *th.PPPRas {
		t = config.TierAccelerated
	}
	return t
}

// Engine is the Tier Engine. It owns the render loop's tier decision,
// the LOD pass, the frame-metric ring, and event emission. Single
// caller per render cycle is assumed (spec's single-threaded core);
// the mutex exists for the same reason the teacher's status-machine
// types carry one — callers from a host binary's goroutines (resize
// handlers, the demo server) may reach in between frames.
type Engine struct {
	mu sync.Mutex

	opts config.Options
	bus  *events.Bus
	ring *perf.Ring

	surfaces map[config.TierName]surface.Surface

	current     config.TierName
	hasRendered bool
	frameCount  int
	lastDensity perf.DensitySignature
	lastLOD     map[string]int
}

// NewEngine constructs a Tier Engine from validated options and an
// event bus. Call RegisterSurface for at least one tier before Render.
func NewEngine(opts config.Options, bus *events.Bus) *Engine {
	_, maxBudget := opts.Perf.FrameBudget()
	maxMS := 33.33
	if maxBudget > 0 {
		maxMS = float64(maxBudget.Microseconds()) / 1000
	}
	capacity := 60
	if opts.Perf.RingCapacity != nil {
		capacity = *opts.Perf.RingCapacity
	}
	return &Engine{
		opts:     opts,
		bus:      bus,
		ring:     perf.NewRing(capacity, maxMS),
		surfaces: make(map[config.TierName]surface.Surface),
		lastLOD:  make(map[string]int),
	}
}

// RegisterSurface attaches a Surface implementation to a tier. Surfaces
// are created once at startup and destroyed LIFO at shutdown by the
// owning engine; this package only ever renders to and reads from them.
func (e *Engine) RegisterSurface(t config.TierName, s surface.Surface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surfaces[t] = s
}

// CurrentTier reports the tier most recently rendered to.
func (e *Engine) CurrentTier() config.TierName {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Ring exposes the frame-metric ring for diagnostics (dashboard,
// a11y summary, tests).
func (e *Engine) Ring() *perf.Ring {
	return e.ring
}

// resolveAvailable walks down from t to the nearest registered,
// non-nil surface. If nothing at or below t is registered it walks up
// instead, so a misconfigured engine with only an Accelerated surface
// still renders something. Returns the resolved tier and whether a
// fallback away from t occurred.
func (e *Engine) resolveAvailable(t config.TierName) (config.TierName, bool) {
	if sf, ok := e.surfaces[t]; ok && sf != nil {
		return t, false
	}
	idx := tierIndex(t)
	for i := idx - 1; i >= 0; i-- {
		if sf, ok := e.surfaces[tierOrder[i]]; ok && sf != nil {
			return tierOrder[i], true
		}
	}
	for i := idx + 1; i < len(tierOrder); i++ {
		if sf, ok := e.surfaces[tierOrder[i]]; ok && sf != nil {
			return tierOrder[i], true
		}
	}
	return t, false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// renderLODTarget picks a downsample target proportional to the
// viewport's pixel width — roughly two candidate points per pixel,
// floored so narrow viewports still get a usable bucket count.
func renderLODTarget(viewport seriesdata.Viewport) int {
	w := int(viewport.InnerWidth())
	if w < 250 {
		w = 250
	}
	return w * 2
}

func toLODConfig(o config.LODOptions) lod.Config {
	cfg := lod.DefaultConfig()
	if o.TemporalBucketing != nil {
		cfg.TemporalBucketing = *o.TemporalBucketing
	}
	if o.Envelope != nil {
		cfg.Envelope = *o.Envelope
	}
	if o.OutlierPreserve != nil {
		cfg.OutlierPreserve = *o.OutlierPreserve
	}
	if o.OutlierMethod != nil {
		cfg.Method = lod.OutlierMethod(*o.OutlierMethod)
	}
	if o.OutlierThreshold != nil {
		cfg.Threshold = *o.OutlierThreshold
	}
	if o.MaxOutlierPercent != nil {
		cfg.MaxOutlierPercent = *o.MaxOutlierPercent
	}
	return cfg
}

// Render runs one full frame: decide the tier, downsample every
// visible series, render to the resolved surface's tier, record the
// frame metric, and run the auto-degrade check. nowNanos is supplied
// by the caller (spec's single-threaded core owns its own clock
// source) rather than read from time.Now, so tests are deterministic.
func (e *Engine) Render(series []seriesdata.Series, viewport seriesdata.Viewport, nowNanos int64) (surface.Metrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	density := perf.Density(series, viewport)

	reevaluate := !e.hasRendered ||
		e.frameCount%reevaluateEveryNFrames == 0 ||
		absInt(density.TotalPoints-e.lastDensity.TotalPoints) >= densityDeltaThreshold

	target := e.current
	if reevaluate {
		target = selectTier(e.opts.Thresholds, density.TotalPoints, density.PointsPerPixel)
	}

	resolved, fellBack := e.resolveAvailable(target)
	if !e.hasRendered || resolved != e.current {
		reason := events.ReasonDensity
		if fellBack {
			reason = events.ReasonFallback
		}
		e.emitTierSwitch(nowNanos, e.current, resolved, reason, density)
		e.current = resolved
	}

	sf := e.surfaces[e.current]
	if sf == nil {
		return surface.Metrics{}, fmt.Errorf("tier: no surface registered for tier %q or any fallback", e.current)
	}

	lodCfg := toLODConfig(e.opts.LOD)
	target2 := renderLODTarget(viewport)
	lodBySeriesID := make(map[string]int, len(series))
	for _, s := range series {
		if !s.Visible {
			continue
		}
		result := lod.Downsample(s.Data, target2, lodCfg, nil)
		lodBySeriesID[s.ID] = int(result.Level)
		if prev, ok := e.lastLOD[s.ID]; !ok || prev != int(result.Level) {
			e.lastLOD[s.ID] = int(result.Level)
			e.bus.Publish(events.Event{
				Type:      events.KindLODChange,
				TimeNanos: nowNanos,
				Payload: events.LODChangePayload{
					SeriesID:    s.ID,
					Level:       int(result.Level),
					Compression: result.CompressionRatio,
				},
			})
		}
	}

	metrics := sf.Render(series, viewport, lodBySeriesID)
	m := e.ring.Record(nowNanos, metrics.FrameTimeMS, density.TotalPoints, string(e.current))
	e.hasRendered = true
	e.frameCount++
	e.lastDensity = density

	if e.opts.Perf.AutoDegrade != nil && *e.opts.Perf.AutoDegrade && m.Dropped {
		threshold := 10
		if e.opts.Perf.DegradeFrameThreshold != nil {
			threshold = *e.opts.Perf.DegradeFrameThreshold
		}
		if e.ring.ConsecutiveDrops() >= threshold {
			e.degradeOneStep(nowNanos, density)
		}
	}

	return metrics, nil
}

// degradeOneStep steps exactly one tier down from current, never up,
// and never more than one step per call — sustained drops step down
// again on the next qualifying frame instead of jumping straight to
// Vector. If no lower tier has a registered surface it emits a
// violation instead, since there's nowhere left to degrade to.
func (e *Engine) degradeOneStep(nowNanos int64, density perf.DensitySignature) {
	idx := tierIndex(e.current)
	for i := idx - 1; i >= 0; i-- {
		if sf, ok := e.surfaces[tierOrder[i]]; ok && sf != nil {
			e.emitTierSwitch(nowNanos, e.current, tierOrder[i], events.ReasonPerformance, density)
			e.current = tierOrder[i]
			return
		}
	}
	e.bus.Publish(events.Event{
		Type:      events.KindPerformanceViolation,
		TimeNanos: nowNanos,
		Payload: events.ViolationPayload{
			ConsecutiveDrops: e.ring.ConsecutiveDrops(),
			AvgFrameTimeMS:   e.ring.AverageFrameTime(nowNanos, 1000),
		},
	})
}

func (e *Engine) emitTierSwitch(nowNanos int64, from, to config.TierName, reason events.TierSwitchReason, density perf.DensitySignature) {
	e.bus.Publish(events.Event{
		Type:      events.KindTierSwitch,
		TimeNanos: nowNanos,
		Payload: events.TierSwitchPayload{
			From:         string(from),
			To:           string(to),
			Reason:       reason,
			Density:      density.PointsPerPixel,
			AvgFrameTime: e.ring.AverageFrameTime(nowNanos, 1000),
		},
	})
}

// SetThresholds replaces the threshold table consulted by selectTier —
// used by callers restoring a persisted runtime override. It does not
// force an immediate re-evaluation; the next reevaluate-eligible frame
// picks it up.
func (e *Engine) SetThresholds(th config.ThresholdOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Thresholds = th
}

// SetForceTier applies (or clears, with nil) a session-lifetime tier
// override. The override persists until cleared or the engine is
// rebuilt — it is not reset by density changes.
func (e *Engine) SetForceTier(t *config.TierName, nowNanos int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Thresholds.ForceTier = t
	if t == nil {
		return
	}
	resolved, fellBack := e.resolveAvailable(*t)
	reason := events.ReasonManual
	if fellBack {
		reason = events.ReasonFallback
	}
	if !e.hasRendered || resolved != e.current {
		e.emitTierSwitch(nowNanos, e.current, resolved, reason, e.lastDensity)
		e.current = resolved
		e.hasRendered = true
	}
}
