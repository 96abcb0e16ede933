// Package seriesdata defines the shared data model every vizcore
// component operates on: data points, series, viewports, and the
// scale abstraction that maps data coordinates to pixel coordinates.
//
// Series are owned by the caller. The core borrows them read-only
// during a single render/query cycle and must never retain a
// reference past that cycle (spec.md §3 "Ownership").
package seriesdata

import "github.com/google/uuid"

// DataPoint is one sample in a series. X is a float64 data coordinate
// (the caller is responsible for projecting a monotonic timeline, e.g.
// Unix nanoseconds, onto this axis before handing points to the
// engine — see Viewport.XScale). ID is opaque; a caller that leaves it
// empty can stamp UUIDs with Series.EnsureIDs so synthetic LOD
// representative points never collide with caller ids.
type DataPoint struct {
	X    float64
	Y    float64
	ID   string
	Meta map[string]string
}

// Series is an ordered, named collection of DataPoints.
type Series struct {
	ID      string
	Name    string
	Color   string
	Visible bool
	Data    []DataPoint

	// Ordered records whether Data is declared non-decreasing in X.
	// No core component reads it: the LOD Engine's fast path sorts by X
	// itself and bucketing places points by X regardless of order.
	Ordered bool

	// Version is a caller-maintained counter for the series' data
	// (spec.md §3 "LOD results... may be cached by (series_id,
	// series_version, viewport_signature, target)"). vizcore neither
	// increments it nor caches LOD results by it.
	Version uint64
}

// EnsureIDs stamps a UUID onto every point in s whose ID is empty, in
// place, so downstream representative-point synthesis (e.g.
// "bucket-3-avg") never collides with a caller id. The engine does not
// call it; a caller that wants stamped ids calls it before Render.
func (s *Series) EnsureIDs() {
	for i := range s.Data {
		if s.Data[i].ID == "" {
			s.Data[i].ID = uuid.NewString()
		}
	}
}

// Margins is the inset of the plotting area from the viewport edges.
type Margins struct {
	Top, Right, Bottom, Left float64
}

// Scale is a pure, injected mapping between a data coordinate and a
// pixel coordinate, plus its inverse. Scales carry no state beyond
// what's needed to perform the mapping; zoom/pan transform math is
// out of scope for vizcore (spec.md §1 Non-goals) and lives entirely
// behind this interface.
type Scale interface {
	ToPixel(data float64) float64
	ToData(pixel float64) float64
}

// LinearScale is a minimal Scale implementation usable by tests and
// simple callers: it affinely maps [DataMin, DataMax] to [PixelMin, PixelMax].
type LinearScale struct {
	DataMin, DataMax   float64
	PixelMin, PixelMax float64
}

func (s LinearScale) ToPixel(data float64) float64 {
	if s.DataMax == s.DataMin {
		return s.PixelMin
	}
	t := (data - s.DataMin) / (s.DataMax - s.DataMin)
	return s.PixelMin + t*(s.PixelMax-s.PixelMin)
}

func (s LinearScale) ToData(pixel float64) float64 {
	if s.PixelMax == s.PixelMin {
		return s.DataMin
	}
	t := (pixel - s.PixelMin) / (s.PixelMax - s.PixelMin)
	return s.DataMin + t*(s.DataMax-s.DataMin)
}

// Viewport is the rendering surface geometry plus the scales used to
// project data into it.
type Viewport struct {
	WidthPx, HeightPx float64
	Margins           Margins
	PixelRatio        float64
	XScale            Scale
	YScale            Scale
}

// InnerWidth and InnerHeight return the plotting area dimensions after
// subtracting margins (spec.md §3).
func (v Viewport) InnerWidth() float64 {
	return v.WidthPx - v.Margins.Left - v.Margins.Right
}

func (v Viewport) InnerHeight() float64 {
	return v.HeightPx - v.Margins.Top - v.Margins.Bottom
}

// Signature returns a coarse, deterministic fingerprint of the
// viewport's geometry, suitable as part of an LOD cache key. It
// intentionally ignores the scales themselves (which are not
// comparable) and only captures what changes the pixel footprint.
func (v Viewport) Signature() [4]float64 {
	return [4]float64{v.WidthPx, v.HeightPx, v.Margins.Left + v.Margins.Right, v.Margins.Top + v.Margins.Bottom}
}
