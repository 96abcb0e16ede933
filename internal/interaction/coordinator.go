// Package interaction implements the Interaction Coordinator: a single
// state-machine owner for hover, click-to-select, brush-select, and
// keyboard navigation, all answered against the Spatial Index rather
// than any per-surface state.
package interaction

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/billyribeiro-ux/vizcore/internal/config"
	"github.com/billyribeiro-ux/vizcore/internal/events"
	"github.com/billyribeiro-ux/vizcore/internal/spatialindex"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
)

// State is the coordinator's current interaction mode.
type State string

const (
	StateIdle      State = "idle"
	StateHovering  State = "hovering"
	StateBrushing  State = "brushing"
	StateSelecting State = "selecting"
)

// HoverResult is the outcome of the most recently settled hover.
type HoverResult struct {
	Hit   spatialindex.HitResult
	Found bool
}

const (
	defaultHoverDebounceMS  = 16
	defaultZoomDebounceMS   = 50
	defaultDoubleClickMS    = 300
	defaultHoverRadiusPx    = 10.0
	defaultSelectionRadius  = 15.0
	doubleClickProximityPx  = 5.0
)

// Coordinator owns hover/selection/brush/keyboard-nav state across the
// lifetime of an engine — including across tier transitions, since the
// Spatial Index (not any Surface) answers every query here.
type Coordinator struct {
	mu   sync.Mutex
	opts config.InteractionOptions
	bus  *events.Bus

	index *spatialindex.Index
	state State

	hoverTimer *time.Timer
	zoomTimer  *time.Timer
	hover      HoverResult

	selection map[string]seriesdata.DataPoint

	brushActive            bool
	brushX1, brushY1        float64
	brushX2, brushY2        float64

	lastClickAt      time.Time
	lastClickX       float64
	lastClickY       float64

	navSeries    []string
	navPoints    map[string][]seriesdata.DataPoint
	navSeriesIdx int
	navPointIdx  int
}

// NewCoordinator constructs a Coordinator. Attach must be called
// before any query will return results. bus receives hover-changed,
// hover-cleared, zoom-intent, and zoom-reset events (spec.md §4.5);
// it may be nil in tests that don't care about event emission.
func NewCoordinator(opts config.InteractionOptions, bus *events.Bus) *Coordinator {
	return &Coordinator{
		opts:      opts,
		bus:       bus,
		state:     StateIdle,
		selection: make(map[string]seriesdata.DataPoint),
		navPoints: make(map[string][]seriesdata.DataPoint),
	}
}

func (c *Coordinator) publish(kind events.Kind, payload interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{Type: kind, TimeNanos: time.Now().UnixNano(), Payload: payload})
}

// Attach points the coordinator at a fresh Spatial Index and series
// snapshot — called after every render, since the index is rebuilt
// eagerly each frame. Pending debounce timers are stopped (they would
// otherwise resolve against a stale index); selection is preserved
// across the call, so a tier switch or re-render never silently drops
// what the user had selected.
func (c *Coordinator) Attach(idx *spatialindex.Index, series []seriesdata.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
	}
	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
	}
	c.index = idx
	c.hover = HoverResult{}
	c.brushActive = false
	c.state = StateIdle

	c.navSeries = c.navSeries[:0]
	c.navPoints = make(map[string][]seriesdata.DataPoint, len(series))
	for _, s := range series {
		if !s.Visible {
			continue
		}
		pts := append([]seriesdata.DataPoint(nil), s.Data...)
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
		c.navPoints[s.ID] = pts
		c.navSeries = append(c.navSeries, s.ID)
	}
	if c.navSeriesIdx >= len(c.navSeries) {
		c.navSeriesIdx = 0
	}
	if pts := c.currentNavPointsLocked(); len(pts) > 0 && c.navPointIdx >= len(pts) {
		c.navPointIdx = 0
	}
}

// State reports the coordinator's current mode.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func pointKey(p seriesdata.DataPoint) string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("%g|%g", p.X, p.Y)
}

func dist(x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	return math.Sqrt(dx*dx + dy*dy)
}

func (c *Coordinator) hoverDebounce() time.Duration {
	ms := defaultHoverDebounceMS
	if c.opts.HoverDebounceMS != nil {
		ms = *c.opts.HoverDebounceMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Coordinator) zoomDebounce() time.Duration {
	ms := defaultZoomDebounceMS
	if c.opts.ZoomDebounceMS != nil {
		ms = *c.opts.ZoomDebounceMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Coordinator) hoverRadius() float64 {
	r := defaultHoverRadiusPx
	if c.opts.HoverRadiusPx != nil {
		r = *c.opts.HoverRadiusPx
	}
	return r
}

func (c *Coordinator) selectionRadius() float64 {
	r := defaultSelectionRadius
	if c.opts.SelectionRadius != nil {
		r = *c.opts.SelectionRadius
	}
	return r
}

func (c *Coordinator) doubleClickWindow() time.Duration {
	ms := defaultDoubleClickMS
	if c.opts.DoubleClickMS != nil {
		ms = *c.opts.DoubleClickMS
	}
	return time.Duration(ms) * time.Millisecond
}

// Hover schedules a debounced nearest-point lookup at (px, py). Only
// the last call within the debounce window resolves — a fast mouse
// sweep never triggers one lookup per pixel.
func (c *Coordinator) Hover(px, py float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
	}
	c.hoverTimer = time.AfterFunc(c.hoverDebounce(), func() { c.resolveHover(px, py) })
}

func (c *Coordinator) resolveHover(px, py float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		return
	}
	prevSeries, prevPoint, prevFound := hoverIdentity(c.hover)
	hit, ok := c.index.Nearest(px, py, c.hoverRadius())
	c.hover = HoverResult{Hit: hit, Found: ok}
	if ok {
		c.state = StateHovering
	} else if c.state == StateHovering {
		c.state = StateIdle
	}
	newSeries, newPoint, newFound := hoverIdentity(c.hover)
	if newFound && (!prevFound || newSeries != prevSeries || newPoint != prevPoint) {
		c.publish(events.KindHoverChanged, events.HoverChangedPayload{
			SeriesID: newSeries, PointID: newPoint, PixelX: hit.PixelX, PixelY: hit.PixelY,
		})
	}
}

// hoverIdentity extracts the (seriesID, pointID) pair a hover result is
// identified by, for change detection — a hover at the same point
// twice in a row is not a change even if the debounce timer fired
// again.
func hoverIdentity(h HoverResult) (seriesID, pointID string, found bool) {
	if !h.Found {
		return "", "", false
	}
	return h.Hit.SeriesID, h.Hit.Point.ID, true
}

// CurrentHover returns the most recently settled hover result.
func (c *Coordinator) CurrentHover() HoverResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hover
}

// MouseLeave clears any active hover immediately (bypassing the
// debounce) and, if a hover was active, emits hover-cleared (spec.md
// §4.5 "Mouse-leave: clear hover; emit hover-cleared").
func (c *Coordinator) MouseLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
	}
	wasFound := c.hover.Found
	c.hover = HoverResult{}
	if c.state == StateHovering {
		c.state = StateIdle
	}
	if wasFound {
		c.publish(events.KindHoverCleared, nil)
	}
}

// RequestZoomRefine debounces fn — repeated zoom input collapses to a
// single refine call once the zoom gesture settles.
func (c *Coordinator) RequestZoomRefine(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
	}
	c.zoomTimer = time.AfterFunc(c.zoomDebounce(), fn)
}

// Wheel debounces a wheel gesture by zoom_debounce_ms and, once it
// settles, emits zoom-intent with the direction's factor (1.1 scrolling
// up, 0.9 scrolling down) and the anchor point the wheel fired over
// (spec.md §4.5). Shares the same debounce timer as RequestZoomRefine
// since both represent the same "zoom gesture settled" signal.
func (c *Coordinator) Wheel(anchorX, anchorY float64, up bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	factor := 0.9
	if up {
		factor = 1.1
	}
	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
	}
	c.zoomTimer = time.AfterFunc(c.zoomDebounce(), func() {
		c.publish(events.KindZoomIntent, events.ZoomIntentPayload{Factor: factor, AnchorX: anchorX, AnchorY: anchorY})
	})
}

// Click resolves a click at (px, py, now): a second click within the
// double-click window and proximity radius of the previous one emits
// zoom-reset and leaves the selection untouched (spec.md §4.5
// "Double-click: emit zoom-reset event; do not toggle selection").
// Otherwise the nearest point within SelectionRadius is toggled in/out
// of the selection set.
func (c *Coordinator) Click(px, py float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	isDouble := !c.lastClickAt.IsZero() &&
		now.Sub(c.lastClickAt) <= c.doubleClickWindow() &&
		dist(px, py, c.lastClickX, c.lastClickY) <= doubleClickProximityPx

	c.lastClickAt = now
	c.lastClickX, c.lastClickY = px, py

	if isDouble {
		c.lastClickAt = time.Time{}
		c.state = StateIdle
		c.publish(events.KindZoomReset, nil)
		return
	}

	if c.index == nil {
		return
	}
	hit, ok := c.index.Nearest(px, py, c.selectionRadius())
	if !ok {
		return
	}
	c.toggleSelectionLocked(hit.Point)
	c.state = StateSelecting
}

func (c *Coordinator) toggleSelectionLocked(p seriesdata.DataPoint) {
	key := pointKey(p)
	if _, ok := c.selection[key]; ok {
		delete(c.selection, key)
	} else {
		c.selection[key] = p
	}
}

// BrushBegin starts a rectangular brush gesture anchored at (x, y).
func (c *Coordinator) BrushBegin(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brushActive = true
	c.brushX1, c.brushY1 = x, y
	c.brushX2, c.brushY2 = x, y
	c.state = StateBrushing
}

// BrushUpdate moves the brush's free corner and returns the points
// currently inside it, for live highlight feedback.
func (c *Coordinator) BrushUpdate(x, y float64) []seriesdata.DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.brushActive || c.index == nil {
		return nil
	}
	c.brushX2, c.brushY2 = x, y
	return c.index.PointsInRect(c.brushX1, c.brushY1, c.brushX2, c.brushY2)
}

// BrushEnd finalizes the gesture, adds every enclosed point to the
// selection, and returns them.
func (c *Coordinator) BrushEnd() []seriesdata.DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		c.brushActive = false
		c.state = StateIdle
	}()
	if !c.brushActive || c.index == nil {
		return nil
	}
	pts := c.index.PointsInRect(c.brushX1, c.brushY1, c.brushX2, c.brushY2)
	for _, p := range pts {
		c.selection[pointKey(p)] = p
	}
	return pts
}

// Selection returns a snapshot of the currently selected points, in no
// particular order.
func (c *Coordinator) Selection() []seriesdata.DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]seriesdata.DataPoint, 0, len(c.selection))
	for _, p := range c.selection {
		out = append(out, p)
	}
	return out
}

// ClearSelection empties the selection set.
func (c *Coordinator) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = make(map[string]seriesdata.DataPoint)
}

func (c *Coordinator) keyboardNavEnabled() bool {
	return c.opts.KeyboardNavOn == nil || *c.opts.KeyboardNavOn
}

func (c *Coordinator) currentNavPointsLocked() []seriesdata.DataPoint {
	if c.navSeriesIdx < 0 || c.navSeriesIdx >= len(c.navSeries) {
		return nil
	}
	return c.navPoints[c.navSeries[c.navSeriesIdx]]
}

// NavCurrent returns the point keyboard navigation is positioned on,
// if any.
func (c *Coordinator) NavCurrent() (seriesdata.DataPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pts := c.currentNavPointsLocked()
	if c.navPointIdx < 0 || c.navPointIdx >= len(pts) {
		return seriesdata.DataPoint{}, false
	}
	return pts[c.navPointIdx], true
}

// KeyLeft moves keyboard navigation to the previous point (by X) in
// the current series.
func (c *Coordinator) KeyLeft() (seriesdata.DataPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.keyboardNavEnabled() {
		return seriesdata.DataPoint{}, false
	}
	if c.navPointIdx > 0 {
		c.navPointIdx--
	}
	return c.currentOrZero()
}

// KeyRight moves keyboard navigation to the next point in the current
// series.
func (c *Coordinator) KeyRight() (seriesdata.DataPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.keyboardNavEnabled() {
		return seriesdata.DataPoint{}, false
	}
	pts := c.currentNavPointsLocked()
	if c.navPointIdx < len(pts)-1 {
		c.navPointIdx++
	}
	return c.currentOrZero()
}

// KeyUp switches keyboard navigation to the previous series in
// iteration order, keeping the same point index where possible.
func (c *Coordinator) KeyUp() (seriesdata.DataPoint, bool) {
	return c.switchSeries(-1)
}

// KeyDown switches keyboard navigation to the next series in
// iteration order.
func (c *Coordinator) KeyDown() (seriesdata.DataPoint, bool) {
	return c.switchSeries(1)
}

func (c *Coordinator) switchSeries(delta int) (seriesdata.DataPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.keyboardNavEnabled() || len(c.navSeries) == 0 {
		return seriesdata.DataPoint{}, false
	}
	n := len(c.navSeries)
	c.navSeriesIdx = ((c.navSeriesIdx+delta)%n + n) % n
	if pts := c.currentNavPointsLocked(); c.navPointIdx >= len(pts) {
		c.navPointIdx = len(pts) - 1
	}
	if c.navPointIdx < 0 {
		c.navPointIdx = 0
	}
	return c.currentOrZero()
}

func (c *Coordinator) currentOrZero() (seriesdata.DataPoint, bool) {
	pts := c.currentNavPointsLocked()
	if c.navPointIdx < 0 || c.navPointIdx >= len(pts) {
		return seriesdata.DataPoint{}, false
	}
	return pts[c.navPointIdx], true
}

// KeyEnter adds the point keyboard navigation is positioned on to the
// selection.
func (c *Coordinator) KeyEnter() (seriesdata.DataPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.keyboardNavEnabled() {
		return seriesdata.DataPoint{}, false
	}
	p, ok := c.currentOrZero()
	if !ok {
		return seriesdata.DataPoint{}, false
	}
	c.selection[pointKey(p)] = p
	c.state = StateSelecting
	return p, true
}

// KeyEscape clears the selection.
func (c *Coordinator) KeyEscape() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = make(map[string]seriesdata.DataPoint)
	c.state = StateIdle
}
