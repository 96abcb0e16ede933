// Package engine wires the core components (Tier Engine, Interaction
// Coordinator, Spatial Index) plus the ambient/domain stack (config,
// events, session store) into the single object a host binary embeds.
// It owns surface registration and lifecycle (create at startup,
// destroy LIFO at shutdown, per spec.md §3) and the per-frame sequence
// spec.md §2 describes: downsample + render via the Tier Engine,
// rebuild the Spatial Index, reattach the Interaction Coordinator.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/billyribeiro-ux/vizcore/internal/config"
	"github.com/billyribeiro-ux/vizcore/internal/events"
	"github.com/billyribeiro-ux/vizcore/internal/interaction"
	"github.com/billyribeiro-ux/vizcore/internal/lod"
	"github.com/billyribeiro-ux/vizcore/internal/monitoring"
	"github.com/billyribeiro-ux/vizcore/internal/sessionstore"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/spatialindex"
	"github.com/billyribeiro-ux/vizcore/internal/surface"
	"github.com/billyribeiro-ux/vizcore/internal/tier"
)

// Engine is the top-level vizcore object a host process constructs
// once, registers surfaces on, and drives with a sequence of Render
// calls.
type Engine struct {
	opts  config.Options
	bus   *events.Bus
	store *sessionstore.Store

	tier        *tier.Engine
	interaction *interaction.Coordinator

	surfaces     map[config.TierName]surface.Surface
	surfaceOrder []config.TierName

	// mu guards lastSeries/lastViewport/zoomRefined, which Render
	// writes synchronously and handleZoomIntent reads/writes from the
	// bus's own dispatch goroutine.
	mu           sync.Mutex
	lastSeries   []seriesdata.Series
	lastViewport seriesdata.Viewport
	zoomRefined  map[string]lod.Result

	unsubZoom events.Unregister
}

// New constructs an Engine. If store is non-nil, a previously
// persisted threshold override (§4.10) is loaded and applied before
// the Tier Engine is built; a missing key or a store read error both
// fall back to opts' own thresholds rather than failing construction.
func New(opts config.Options, bus *events.Bus, store *sessionstore.Store) *Engine {
	if store != nil {
		if raw, ok, err := store.Get(sessionstore.ThresholdOverrideKey); err != nil {
			monitoring.Logf("engine: failed to load persisted threshold override: %v", err)
		} else if ok {
			var th config.ThresholdOptions
			if err := json.Unmarshal(raw, &th); err != nil {
				monitoring.Logf("engine: persisted threshold override is corrupt, ignoring: %v", err)
			} else {
				opts.Thresholds = th
			}
		}
	}

	e := &Engine{
		opts:        opts,
		bus:         bus,
		store:       store,
		tier:        tier.NewEngine(opts, bus),
		interaction: interaction.NewCoordinator(opts.Interaction, bus),
		surfaces:    make(map[config.TierName]surface.Surface),
		zoomRefined: make(map[string]lod.Result),
	}
	if bus != nil {
		e.unsubZoom = bus.SubscribeFunc(e.handleZoomIntent)
	}
	return e
}

// handleZoomIntent re-downsamples every visible series over the data
// window implied by a zoom-intent event's anchor and factor, at up to
// 2x the frame's normal target (spec.md §4.1 "Zoom refinement"). It is
// a no-op when opts.LOD.ZoomRefine is explicitly disabled, or before
// the first Render has populated lastSeries/lastViewport.
func (e *Engine) handleZoomIntent(ev events.Event) {
	if ev.Type != events.KindZoomIntent {
		return
	}
	if e.opts.LOD.ZoomRefine != nil && !*e.opts.LOD.ZoomRefine {
		return
	}
	payload, ok := ev.Payload.(events.ZoomIntentPayload)
	if !ok {
		return
	}

	e.mu.Lock()
	series := e.lastSeries
	viewport := e.lastViewport
	e.mu.Unlock()
	if len(series) == 0 {
		return
	}

	window := zoomWindow(viewport, payload)
	target := renderLODTarget(viewport)
	lodCfg := toLODConfig(e.opts.LOD)

	refined := make(map[string]lod.Result, len(series))
	for _, s := range series {
		if !s.Visible {
			continue
		}
		refined[s.ID] = lod.ZoomRefine(s.Data, target, lodCfg, window)
	}

	e.mu.Lock()
	e.zoomRefined = refined
	e.mu.Unlock()
	monitoring.Logf("engine: zoom-refined %d series around anchor (%.1f, %.1f) factor %.2f", len(refined), payload.AnchorX, payload.AnchorY, payload.Factor)
}

// ZoomRefined returns the most recent zoom-refinement results keyed by
// series ID, populated only when the LOD.ZoomRefine config is enabled
// and at least one zoom-intent event has been handled.
func (e *Engine) ZoomRefined() map[string]lod.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoomRefined
}

// zoomWindow derives the data-space time window a zoom-intent anchor
// and factor imply, centered on the anchor pixel and scaled by factor
// relative to the viewport's current inner width.
func zoomWindow(viewport seriesdata.Viewport, payload events.ZoomIntentPayload) lod.TimeWindow {
	innerW := viewport.InnerWidth()
	halfSpan := innerW * payload.Factor / 2
	loPx := payload.AnchorX - halfSpan
	hiPx := payload.AnchorX + halfSpan
	lo := viewport.XScale.ToData(loPx)
	hi := viewport.XScale.ToData(hiPx)
	if hi < lo {
		lo, hi = hi, lo
	}
	return lod.TimeWindow{Lo: lo, Hi: hi}
}

// renderLODTarget mirrors tier.renderLODTarget: a downsample target
// proportional to the viewport's pixel width.
func renderLODTarget(viewport seriesdata.Viewport) int {
	w := int(viewport.InnerWidth())
	if w < 250 {
		w = 250
	}
	return w * 2
}

// toLODConfig mirrors tier.toLODConfig, resolving config.LODOptions'
// nullable overrides against lod.DefaultConfig.
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

// RegisterSurface attaches s to tier t. Surfaces must be registered
// before Start; registration order determines LIFO destroy order at
// Shutdown.
func (e *Engine) RegisterSurface(t config.TierName, s surface.Surface) error {
	if _, exists := e.surfaces[t]; exists {
		return fmt.Errorf("engine: surface already registered for tier %q", t)
	}
	e.surfaces[t] = s
	e.surfaceOrder = append(e.surfaceOrder, t)
	e.tier.RegisterSurface(t, s)
	return nil
}

// Start initializes every registered surface, in registration order,
// blocking until each signals readiness (spec.md §3 "Surfaces are
// created at engine startup"). handles supplies the runtime handle
// (DOM node, window, io.Writer, …) for each tier; a tier with no entry
// gets a nil handle.
func (e *Engine) Start(ctx context.Context, handles map[config.TierName]surface.Handle, viewport seriesdata.Viewport) error {
	for _, t := range e.surfaceOrder {
		sf := e.surfaces[t]
		select {
		case err := <-sf.Initialize(ctx, handles[t], viewport):
			if err != nil {
				return fmt.Errorf("engine: initialize surface %q: %w", t, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Render runs one frame: the Tier Engine picks a tier, downsamples,
// and renders; the Spatial Index is then rebuilt eagerly over the
// same series/viewport (spec.md §3); the Interaction Coordinator is
// reattached to the fresh index, preserving its selection state across
// the tier transition. series is borrowed read-only for the duration
// of this call only, per spec.md §3's ownership rule — Engine does not
// retain the caller's slices past this method returning; VisibleSeries
// and zoom refinement read a copy of the series and their points taken
// here.
func (e *Engine) Render(series []seriesdata.Series, viewport seriesdata.Viewport, nowNanos int64) (surface.Metrics, error) {
	metrics, err := e.tier.Render(series, viewport, nowNanos)
	if err != nil {
		return metrics, err
	}

	idx := spatialindex.Build(series, viewport, spatialindex.DefaultHitRadiusPx)
	e.interaction.Attach(idx, series)

	snapshot := make([]seriesdata.Series, len(series))
	for i, s := range series {
		snapshot[i] = s
		snapshot[i].Data = append([]seriesdata.DataPoint(nil), s.Data...)
	}

	e.mu.Lock()
	e.lastSeries = snapshot
	e.lastViewport = viewport
	e.mu.Unlock()
	return metrics, nil
}

// VisibleSeries and Viewport satisfy dashboard.SeriesSource, exposing
// the most recent frame's inputs for the debug dashboard to summarize
// and chart.
func (e *Engine) VisibleSeries() []seriesdata.Series {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeries
}

func (e *Engine) Viewport() seriesdata.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastViewport
}

// Tier returns the underlying Tier Engine, for callers that need
// CurrentTier/Ring/SetForceTier directly.
func (e *Engine) Tier() *tier.Engine { return e.tier }

// Interaction returns the underlying Interaction Coordinator.
func (e *Engine) Interaction() *interaction.Coordinator { return e.interaction }

// SetThresholdOverride applies th to the Tier Engine immediately and,
// if a session store is configured, persists it under
// sessionstore.ThresholdOverrideKey so a restarted process resumes
// with the same thresholds (spec.md §6's one permitted piece of
// persisted state).
func (e *Engine) SetThresholdOverride(th config.ThresholdOptions) error {
	e.tier.SetThresholds(th)
	if e.store == nil {
		return nil
	}
	raw, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("engine: marshal threshold override: %w", err)
	}
	if err := e.store.Put(sessionstore.ThresholdOverrideKey, raw); err != nil {
		return fmt.Errorf("engine: persist threshold override: %w", err)
	}
	return nil
}

// Shutdown destroys every registered surface in LIFO order (spec.md
// §3). Safe to call once; calling it a second time destroys already-
// destroyed surfaces again, which every Surface implementation must
// already tolerate as a no-op.
func (e *Engine) Shutdown() {
	if e.unsubZoom != nil {
		e.unsubZoom()
	}
	for i := len(e.surfaceOrder) - 1; i >= 0; i-- {
		e.surfaces[e.surfaceOrder[i]].Destroy()
	}
}
