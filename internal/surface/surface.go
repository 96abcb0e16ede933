// Package surface defines the capability interface every concrete
// render tier implements, and a recording mock used by tests to
// verify per-frame call shape without depending on any real rendering
// library.
//
// Concrete production surfaces (vector draw-list construction, 2D
// canvas calls, GPU mesh building) are external collaborators per
// spec.md §1 — this package defines only the contract.
package surface

import (
	"context"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/spatialindex"
)

// Handle is an opaque reference to wherever a surface draws — a DOM
// node, a window handle, a GPU device — supplied by the runtime.
type Handle interface{}

// Metrics is whatever a concrete surface wants to report back about
// its own rendering cost; the Tier Engine only reads FrameTimeMS.
type Metrics struct {
	FrameTimeMS float64
}

// Surface is the capability every render tier variant (Vector, Raster,
// Accelerated) must implement, per spec.md §4.3.
//
// All variants must: clear prior visuals before each Render; respect
// series visibility; turn NaN y-values into a gap rather than
// connecting across them; and answer hit tests identically to the
// Spatial Index rather than maintaining a private structure — the
// index is authoritative.
type Surface interface {
	// Initialize may complete asynchronously (external resource
	// acquisition); the returned channel receives exactly one value (an
	// error, or nil for success) once ready. Render on a not-yet-ready surface is
	// the engine's responsibility to queue, not the surface's.
	Initialize(ctx context.Context, handle Handle, viewport seriesdata.Viewport) <-chan error
	Render(series []seriesdata.Series, viewport seriesdata.Viewport, lodBySeriesID map[string]int) Metrics
	Resize(widthPx, heightPx float64)
	Destroy()
	NearestHit(idx *spatialindex.Index, px, py, radius float64) (spatialindex.HitResult, bool)
	RegionHit(idx *spatialindex.Index, x1, y1, x2, y2 float64) []seriesdata.DataPoint
}

// BaseHitTest implements NearestHit/RegionHit by delegating entirely
// to the Spatial Index, per spec.md §4.3's "the index is authoritative"
// rule. Concrete surfaces embed this instead of re-implementing
// hit-testing against their own draw structures.
type BaseHitTest struct{}

func (BaseHitTest) NearestHit(idx *spatialindex.Index, px, py, radius float64) (spatialindex.HitResult, bool) {
	if idx == nil {
		return spatialindex.HitResult{}, false
	}
	return idx.Nearest(px, py, radius)
}

func (BaseHitTest) RegionHit(idx *spatialindex.Index, x1, y1, x2, y2 float64) []seriesdata.DataPoint {
	if idx == nil {
		return nil
	}
	return idx.PointsInRect(x1, y1, x2, y2)
}
