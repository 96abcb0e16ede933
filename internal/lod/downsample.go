package lod

import (
	"fmt"
	"math"
	"sort"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
)

// niceLadder is the fixed set of "nice" bucket widths (milliseconds)
// raw widths snap to, per spec.md §4.1.
var niceLadder = []float64{
	1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000,
	300000, 600000, 3600000, 18000000, 36000000, 86400000, 604800000,
}

// snapToNiceWidth returns the ladder value closest to raw, breaking
// ties toward the smaller value.
func snapToNiceWidth(raw float64) float64 {
	if raw <= niceLadder[0] {
		return niceLadder[0]
	}
	best := niceLadder[len(niceLadder)-1]
	bestDiff := math.Abs(best - raw)
	for _, w := range niceLadder {
		diff := math.Abs(w - raw)
		if diff < bestDiff || (diff == bestDiff && w < best) {
			best = w
			bestDiff = diff
		}
	}
	return best
}

// Downsample reduces points to buckets of width range/target, preserving
// envelope and outliers, per spec.md §4.1. With TemporalBucketing the
// width snaps to the nearest nice-ladder value, so the bucket count can
// come out above or below target.
//
// Failure modes: target <= 0, or no input points, yields an empty
// Result at LevelFull — not an error.
func Downsample(points []seriesdata.DataPoint, target int, cfg Config, window *TimeWindow) Result {
	if target <= 0 || len(points) == 0 {
		return Result{Level: LevelFull}
	}

	if len(points) <= target {
		return fastPath(points)
	}

	tLo, tHi := timeRange(points, window)
	if tHi <= tLo {
		// Degenerate range (all points share one timestamp): collapse
		// to a single bucket rather than dividing by zero.
		return singleBucketResult(points, tLo, tHi, cfg)
	}

	width := tHi - tLo
	if cfg.TemporalBucketing {
		raw := (tHi - tLo) / float64(target)
		width = snapToNiceWidth(raw)
	} else {
		width = (tHi - tLo) / float64(target)
	}

	numBuckets := int(math.Ceil((tHi - tLo) / width))
	if numBuckets < 1 {
		numBuckets = 1
	}

	outliers := detectOutliers(points, cfg)
	outlierSet := make(map[string]seriesdata.DataPoint, len(outliers))
	for _, o := range outliers {
		outlierSet[pointKey(o)] = o
	}

	type bucketAccum struct {
		tStart, tEnd float64
		pts          []seriesdata.DataPoint
		outliers     []seriesdata.DataPoint
	}
	buckets := make([]bucketAccum, numBuckets)
	for i := range buckets {
		buckets[i].tStart = tLo + float64(i)*width
		buckets[i].tEnd = tLo + float64(i+1)*width
	}

	for _, p := range points {
		idx := int(math.Floor((p.X - tLo) / width))
		if idx < 0 {
			idx = 0
		}
		if idx >= numBuckets {
			idx = numBuckets - 1
		}
		buckets[idx].pts = append(buckets[idx].pts, p)
		if o, ok := outlierSet[pointKey(p)]; ok {
			buckets[idx].outliers = append(buckets[idx].outliers, o)
		}
	}

	result := Result{
		TotalPoints: len(points),
	}
	for i, b := range buckets {
		if len(b.pts) == 0 {
			continue
		}
		bucket := buildBucket(i, b.tStart, b.tEnd, b.pts, b.outliers, cfg.Envelope)
		result.Buckets = append(result.Buckets, bucket)
	}

	result.SampledPoints = len(result.Buckets)
	if result.SampledPoints == 0 {
		result.CompressionRatio = 0
	} else {
		result.CompressionRatio = float64(result.TotalPoints) / float64(result.SampledPoints)
	}
	result.Level = levelForRatio(result.CompressionRatio)
	result.OutlierCount = len(outliers)
	return result
}

func fastPath(points []seriesdata.DataPoint) Result {
	buckets := make([]Bucket, len(points))
	sorted := append([]seriesdata.DataPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })
	for i, p := range sorted {
		tEnd := p.X + 1
		if i+1 < len(sorted) {
			tEnd = sorted[i+1].X
			if tEnd <= p.X {
				tEnd = p.X + 1
			}
		}
		if !isFinite(p.Y) {
			buckets[i] = Bucket{
				TStart:         p.X,
				TEnd:           tEnd,
				MinY:           math.NaN(),
				MaxY:           math.NaN(),
				AvgY:           math.NaN(),
				Count:          1,
				Representative: p,
				Gap:            true,
			}
			continue
		}
		buckets[i] = Bucket{
			TStart:         p.X,
			TEnd:           tEnd,
			MinY:           p.Y,
			MaxY:           p.Y,
			AvgY:           p.Y,
			Count:          1,
			Representative: p,
		}
	}
	return Result{
		Buckets:          buckets,
		TotalPoints:      len(points),
		SampledPoints:    len(points),
		CompressionRatio: 1,
		Level:            LevelFull,
	}
}

func singleBucketResult(points []seriesdata.DataPoint, tLo, tHi float64, cfg Config) Result {
	outliers := detectOutliers(points, cfg)
	b := buildBucket(0, tLo, tHi+1, points, outliers, cfg.Envelope)
	return Result{
		Buckets:          []Bucket{b},
		TotalPoints:      len(points),
		SampledPoints:    1,
		CompressionRatio: float64(len(points)),
		Level:            levelForRatio(float64(len(points))),
		OutlierCount:     len(outliers),
	}
}

// timeRange computes [t_lo, t_hi] either from an explicit window or
// from the input's own X extrema.
func timeRange(points []seriesdata.DataPoint, window *TimeWindow) (float64, float64) {
	if window != nil {
		return window.Lo, window.Hi
	}
	lo, hi := points[0].X, points[0].X
	for _, p := range points {
		if p.X < lo {
			lo = p.X
		}
		if p.X > hi {
			hi = p.X
		}
	}
	return lo, hi
}

// pointKey identifies a point for set membership tests where pointer
// identity isn't available (points are passed by value throughout).
func pointKey(p seriesdata.DataPoint) string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("%g|%g", p.X, p.Y)
}

// buildBucket aggregates one bucket's points into min/max/avg/count
// and selects its representative per spec.md §4.1. A bucket whose
// points are all NaN/Inf is returned as a Gap instead of silently
// collapsing to zero. envelope gates whether MinY/MaxY track the
// bucket's actual extrema or collapse to AvgY (cfg.Envelope off).
func buildBucket(index int, tStart, tEnd float64, pts []seriesdata.DataPoint, outliers []seriesdata.DataPoint, envelope bool) Bucket {
	minY, maxY := math.Inf(1), math.Inf(-1)
	sum := 0.0
	finiteCount := 0
	for _, p := range pts {
		if !isFinite(p.Y) {
			continue
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
		sum += p.Y
		finiteCount++
	}

	sortedOutliers := append([]seriesdata.DataPoint(nil), outliers...)
	sort.SliceStable(sortedOutliers, func(i, j int) bool { return sortedOutliers[i].X < sortedOutliers[j].X })

	if finiteCount == 0 {
		return Bucket{
			TStart:         tStart,
			TEnd:           tEnd,
			MinY:           math.NaN(),
			MaxY:           math.NaN(),
			AvgY:           math.NaN(),
			Count:          len(pts),
			Representative: pts[0],
			Outliers:       sortedOutliers,
			Gap:            true,
		}
	}

	avg := sum / float64(finiteCount)
	if !envelope {
		minY, maxY = avg, avg
	}

	rep := selectRepresentative(index, tStart, tEnd, pts, sortedOutliers, minY, maxY, avg)

	return Bucket{
		TStart:         tStart,
		TEnd:           tEnd,
		MinY:           minY,
		MaxY:           maxY,
		AvgY:           avg,
		Count:          len(pts),
		Representative: rep,
		Outliers:       sortedOutliers,
	}
}

// selectRepresentative implements spec.md §4.1's per-bucket
// representative-selection rule.
func selectRepresentative(index int, tStart, tEnd float64, pts, outliers []seriesdata.DataPoint, minY, maxY, avg float64) seriesdata.DataPoint {
	if len(outliers) > 0 {
		return mostExtreme(outliers, avg)
	}

	if maxY > minY {
		r := (avg - minY) / (maxY - minY)
		switch {
		case r > 0.7:
			return earliestAtValue(pts, maxY)
		case r < 0.3:
			return earliestAtValue(pts, minY)
		default:
			mid := (tStart + tEnd) / 2
			return seriesdata.DataPoint{
				X:  mid,
				Y:  avg,
				ID: fmt.Sprintf("bucket-%d-avg", index),
			}
		}
	}

	// Degenerate bucket (max == min): first point by x.
	return firstByX(pts)
}

// mostExtreme returns the point whose |y - avg| is largest, breaking
// ties toward the earliest x.
func mostExtreme(pts []seriesdata.DataPoint, avg float64) seriesdata.DataPoint {
	best := pts[0]
	bestDist := math.Abs(best.Y - avg)
	for _, p := range pts[1:] {
		d := math.Abs(p.Y - avg)
		if d > bestDist || (d == bestDist && p.X < best.X) {
			best = p
			bestDist = d
		}
	}
	return best
}

// earliestAtValue returns the earliest-by-x point achieving exactly
// value among pts (used for the max/min envelope representative).
func earliestAtValue(pts []seriesdata.DataPoint, value float64) seriesdata.DataPoint {
	var best seriesdata.DataPoint
	found := false
	for _, p := range pts {
		if p.Y != value {
			continue
		}
		if !found || p.X < best.X {
			best = p
			found = true
		}
	}
	if !found {
		return firstByX(pts)
	}
	return best
}

func firstByX(pts []seriesdata.DataPoint) seriesdata.DataPoint {
	best := pts[0]
	for _, p := range pts[1:] {
		if p.X < best.X {
			best = p
		}
	}
	return best
}
