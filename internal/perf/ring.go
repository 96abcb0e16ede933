// Package perf implements the frame-metric ring buffer and
// degradation-relevant accounting described in spec.md §4.6.
package perf

import "github.com/billyribeiro-ux/vizcore/internal/seriesdata"

// Metric is one recorded frame.
type Metric struct {
	TimestampNanos int64
	FrameTimeMS    float64
	PointCount     int
	Tier           string
	Dropped        bool
}

// Ring is a fixed-capacity, overwrite-oldest ring buffer of Metric.
type Ring struct {
	capacity      int
	maxFrameTime  float64
	buf           []Metric
	next          int
	filled        int
}

// NewRing creates a Ring with the given capacity (default 60 per
// spec.md §3) and the max-frame-time budget used to mark a frame
// dropped.
func NewRing(capacity int, maxFrameTimeMS float64) *Ring {
	if capacity < 1 {
		capacity = 60
	}
	return &Ring{capacity: capacity, maxFrameTime: maxFrameTimeMS, buf: make([]Metric, capacity)}
}

// Record appends a frame, marking it dropped if frameTimeMS exceeds
// the configured budget, and returns the stored Metric.
func (r *Ring) Record(timestampNanos int64, frameTimeMS float64, pointCount int, tier string) Metric {
	m := Metric{
		TimestampNanos: timestampNanos,
		FrameTimeMS:    frameTimeMS,
		PointCount:     pointCount,
		Tier:           tier,
		Dropped:        frameTimeMS > r.maxFrameTime,
	}
	r.buf[r.next] = m
	r.next = (r.next + 1) % r.capacity
	if r.filled < r.capacity {
		r.filled++
	}
	return m
}

// Entries returns the stored metrics, oldest first. Never longer than
// capacity, and only ever contains the most recent `capacity` calls to
// Record (spec.md §8 "Ring capacity").
func (r *Ring) Entries() []Metric {
	out := make([]Metric, 0, r.filled)
	if r.filled < r.capacity {
		return append(out, r.buf[:r.filled]...)
	}
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

// AverageFrameTime returns the arithmetic mean FrameTimeMS over
// entries whose timestamp is >= now - windowMS. An empty window (no
// qualifying entries) returns 0.
func (r *Ring) AverageFrameTime(nowNanos int64, windowMS float64) float64 {
	cutoff := nowNanos - int64(windowMS*1e6)
	var sum float64
	var n int
	for _, m := range r.Entries() {
		if m.TimestampNanos >= cutoff {
			sum += m.FrameTimeMS
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// FPS converts an average frame time (ms) to frames per second.
func FPS(avgFrameTimeMS float64) float64 {
	if avgFrameTimeMS <= 0 {
		return 0
	}
	return 1000 / avgFrameTimeMS
}

// ConsecutiveDrops returns the number of trailing dropped frames (most
// recent run), used by the auto-degrade policy.
func (r *Ring) ConsecutiveDrops() int {
	entries := r.Entries()
	n := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Dropped {
			break
		}
		n++
	}
	return n
}

// DensitySignature is (total_points, points_per_pixel), the tuple the
// Tier Engine uses to decide whether to re-evaluate tier selection
// (spec.md GLOSSARY).
type DensitySignature struct {
	TotalPoints     int
	PointsPerPixel  float64
}

// Density computes the density signature for a series set over a
// viewport's inner area.
func Density(series []seriesdata.Series, viewport seriesdata.Viewport) DensitySignature {
	total := 0
	for _, s := range series {
		if !s.Visible {
			continue
		}
		total += len(s.Data)
	}
	area := viewport.InnerWidth() * viewport.InnerHeight()
	var ppp float64
	if area > 0 {
		ppp = float64(total) / area
	}
	return DensitySignature{TotalPoints: total, PointsPerPixel: ppp}
}
