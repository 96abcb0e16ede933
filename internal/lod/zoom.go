package lod

import "github.com/billyribeiro-ux/vizcore/internal/seriesdata"

// ZoomRefine filters points to the visible sub-window [window.Lo,
// window.Hi] and re-downsamples at up to 2x the original target,
// capped by the number of points actually visible in the window, per
// spec.md §4.1 "Zoom refinement". The 2x clamp is a fixed constant —
// spec.md leaves scaling it with zoom depth as an open question for a
// later revision.
func ZoomRefine(points []seriesdata.DataPoint, target int, cfg Config, window TimeWindow) Result {
	visible := make([]seriesdata.DataPoint, 0, len(points))
	for _, p := range points {
		if p.X >= window.Lo && p.X <= window.Hi {
			visible = append(visible, p)
		}
	}

	refinedTarget := target * 2
	if len(visible) < refinedTarget {
		refinedTarget = len(visible)
	}

	return Downsample(visible, refinedTarget, cfg, &window)
}
