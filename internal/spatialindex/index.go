// Package spatialindex implements the grid-bucketed spatial index used
// for nearest-point and region-contained queries, consistent across
// every render tier (spec.md §4.2). The grid idiom — cell-indexed
// buckets keyed by an (i, j) pair — follows the same shape as the
// teacher's ring/azimuth background grid, applied here to pixel space
// instead of polar sensor space.
package spatialindex

import (
	"math"
	"sort"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
)

// DefaultHitRadiusPx is the default query radius; cell size is always
// 2x the hit radius (spec.md §4.2).
const DefaultHitRadiusPx = 10.0

// cellKey identifies one grid cell.
type cellKey struct{ I, J int }

// ref points at one point within a borrowed series.
type ref struct {
	seriesID   string
	seriesIdx  int // not set by Build; hit tie-breaks use rankOf instead
	pointIndex int
	px, py     float64
	point      seriesdata.DataPoint
}

// HitResult is the outcome of a nearest-point query.
type HitResult struct {
	SeriesID string
	Point    seriesdata.DataPoint
	PixelX   float64
	PixelY   float64
	Distance float64
}

// Index is a uniform grid over one viewport's pixel space. Build it
// once per render; it is invalidated by any change to the series set,
// viewport, or scales (spec.md §4.2 "Invariants").
type Index struct {
	cellSize float64
	cells    map[cellKey][]ref
	// seriesOrder preserves the order series were handed to Build, used
	// to break hit-test ties by "smaller series id" deterministically
	// and to preserve iteration order for region queries.
	seriesOrder []string
}

// Build constructs a grid index over the visible points of series,
// projected into viewport pixel space, using cellSize = 2*hitRadiusPx.
func Build(series []seriesdata.Series, viewport seriesdata.Viewport, hitRadiusPx float64) *Index {
	if hitRadiusPx <= 0 {
		hitRadiusPx = DefaultHitRadiusPx
	}
	idx := &Index{
		cellSize: 2 * hitRadiusPx,
		cells:    make(map[cellKey][]ref),
	}
	for _, s := range series {
		if !s.Visible {
			continue
		}
		idx.seriesOrder = append(idx.seriesOrder, s.ID)
		for pi, p := range s.Data {
			if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
				continue
			}
			px := viewport.XScale.ToPixel(p.X) - viewport.Margins.Left
			py := viewport.YScale.ToPixel(p.Y) - viewport.Margins.Top
			key := idx.cellFor(px, py)
			idx.cells[key] = append(idx.cells[key], ref{
				seriesID: s.ID, pointIndex: pi, px: px, py: py, point: p,
			})
		}
	}
	return idx
}

func (idx *Index) cellFor(px, py float64) cellKey {
	return cellKey{I: int(math.Floor(px / idx.cellSize)), J: int(math.Floor(py / idx.cellSize))}
}

// Nearest finds the closest point within radius of (px, py), both in
// inner-area pixel coordinates already adjusted for margins by the
// caller (spec.md §4.2 "Nearest query"). Scans the 3x3 neighbourhood
// around the query cell; ties broken by smaller series id, then
// smaller point index.
func (idx *Index) Nearest(px, py, radius float64) (HitResult, bool) {
	center := idx.cellFor(px, py)
	seriesRank := idx.rankOf()

	var best *ref
	bestDist := math.Inf(1)
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			key := cellKey{I: center.I + di, J: center.J + dj}
			for i := range idx.cells[key] {
				r := &idx.cells[key][i]
				dx, dy := r.px-px, r.py-py
				d := math.Hypot(dx, dy)
				if d >= radius {
					continue
				}
				if best == nil || d < bestDist || (d == bestDist && isBetterTie(r, best, seriesRank)) {
					best = r
					bestDist = d
				}
			}
		}
	}
	if best == nil {
		return HitResult{}, false
	}
	return HitResult{
		SeriesID: best.seriesID,
		Point:    best.point,
		PixelX:   best.px,
		PixelY:   best.py,
		Distance: bestDist,
	}, true
}

func isBetterTie(candidate, current *ref, rank map[string]int) bool {
	cr, kr := rank[candidate.seriesID], rank[current.seriesID]
	if cr != kr {
		return cr < kr
	}
	return candidate.pointIndex < current.pointIndex
}

// rankOf ranks series alphabetically by id, for Nearest's "smaller
// series id" tie-break rule.
func (idx *Index) rankOf() map[string]int {
	m := make(map[string]int, len(idx.seriesOrder))
	ids := append([]string(nil), idx.seriesOrder...)
	sort.Strings(ids)
	for i, id := range ids {
		m[id] = i
	}
	return m
}

// insertionRankOf ranks series by the order they were passed to
// Build, for PointsInRect's "series iteration order" ordering rule.
func (idx *Index) insertionRankOf() map[string]int {
	m := make(map[string]int, len(idx.seriesOrder))
	for i, id := range idx.seriesOrder {
		if _, ok := m[id]; !ok {
			m[id] = i
		}
	}
	return m
}

// PointsInRect returns every indexed point whose pixel coordinates lie
// inside [x1,y1]-[x2,y2], bounds included (spec.md §4.2),
// ordered by series iteration order then point index.
func (idx *Index) PointsInRect(x1, y1, x2, y2 float64) []seriesdata.DataPoint {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	iLo := int(math.Floor(x1 / idx.cellSize))
	iHi := int(math.Floor(x2 / idx.cellSize))
	jLo := int(math.Floor(y1 / idx.cellSize))
	jHi := int(math.Floor(y2 / idx.cellSize))

	type found struct {
		seriesRank, pointIndex int
		point                  seriesdata.DataPoint
	}
	rank := idx.insertionRankOf()
	var results []found
	for i := iLo; i <= iHi; i++ {
		for j := jLo; j <= jHi; j++ {
			for _, r := range idx.cells[cellKey{I: i, J: j}] {
				if r.px >= x1 && r.px <= x2 && r.py >= y1 && r.py <= y2 {
					results = append(results, found{seriesRank: rank[r.seriesID], pointIndex: r.pointIndex, point: r.point})
				}
			}
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].seriesRank != results[b].seriesRank {
			return results[a].seriesRank < results[b].seriesRank
		}
		return results[a].pointIndex < results[b].pointIndex
	})
	out := make([]seriesdata.DataPoint, len(results))
	for i, f := range results {
		out[i] = f.point
	}
	return out
}

// CoverageCount returns the number of indexed (visible, finite-y)
// points — used by tests asserting the "every visible point appears
// exactly once" invariant.
func (idx *Index) CoverageCount() int {
	n := 0
	for _, refs := range idx.cells {
		n += len(refs)
	}
	return n
}
