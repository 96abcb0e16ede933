package lod

import (
	"math"
	"sort"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"gonum.org/v1/gonum/stat"
)

// outlierCandidate pairs a point with its extremity score (distance
// from the method's notion of "centre"), used to rank candidates for
// the percentile cap.
type outlierCandidate struct {
	point seriesdata.DataPoint
	index int // original position, for the earlier-x tie-break
	score float64
}

// detectOutliers runs the configured method over all finite-y points
// and returns the capped, most-extreme-first set of outliers, per
// spec.md §4.1. NaN/Infinity values are excluded from the statistics
// entirely (spec.md §7.4) and can never be flagged as outliers.
func detectOutliers(points []seriesdata.DataPoint, cfg Config) []seriesdata.DataPoint {
	if !cfg.OutlierPreserve || len(points) == 0 {
		return nil
	}

	finite := make([]int, 0, len(points))
	ys := make([]float64, 0, len(points))
	for i, p := range points {
		if isFinite(p.Y) {
			finite = append(finite, i)
			ys = append(ys, p.Y)
		}
	}

	var candidates []outlierCandidate
	switch cfg.Method {
	case MethodIQR:
		candidates = iqrOutliers(points, finite, ys)
	case MethodMAD:
		candidates = madOutliers(points, finite, ys, cfg.Threshold)
	default:
		candidates = zscoreOutliers(points, finite, ys, cfg.Threshold)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].point.X < candidates[j].point.X
	})

	capCount := int(math.Floor(float64(len(points)) * cfg.MaxOutlierPercent / 100))
	if capCount < len(candidates) {
		candidates = candidates[:capCount]
	}

	out := make([]seriesdata.DataPoint, len(candidates))
	for i, c := range candidates {
		out[i] = c.point
	}
	return out
}

func isFinite(y float64) bool {
	return !math.IsNaN(y) && !math.IsInf(y, 0)
}

func zscoreOutliers(points []seriesdata.DataPoint, finite []int, ys []float64, threshold float64) []outlierCandidate {
	if len(ys) < 3 {
		return nil
	}
	mean, stddev := stat.MeanStdDev(ys, nil)
	if stddev == 0 {
		return nil
	}
	var out []outlierCandidate
	for k, i := range finite {
		z := math.Abs(ys[k]-mean) / stddev
		if z > threshold {
			out = append(out, outlierCandidate{point: points[i], index: i, score: z})
		}
	}
	return out
}

func iqrOutliers(points []seriesdata.DataPoint, finite []int, ys []float64) []outlierCandidate {
	if len(ys) < 4 {
		return nil
	}
	sorted := append([]float64(nil), ys...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr
	var out []outlierCandidate
	for k, i := range finite {
		y := ys[k]
		if y < lo || y > hi {
			var dist float64
			if y < lo {
				dist = lo - y
			} else {
				dist = y - hi
			}
			out = append(out, outlierCandidate{point: points[i], index: i, score: dist})
		}
	}
	return out
}

func madOutliers(points []seriesdata.DataPoint, finite []int, ys []float64, threshold float64) []outlierCandidate {
	if len(ys) < 3 {
		return nil
	}
	sorted := append([]float64(nil), ys...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	deviations := make([]float64, len(ys))
	for k, y := range ys {
		deviations[k] = math.Abs(y - median)
	}
	sortedDev := append([]float64(nil), deviations...)
	sort.Float64s(sortedDev)
	mad := stat.Quantile(0.5, stat.Empirical, sortedDev, nil)
	if mad == 0 {
		return nil
	}
	var out []outlierCandidate
	for k, i := range finite {
		score := math.Abs(ys[k]-median) / mad
		if score > threshold {
			out = append(out, outlierCandidate{point: points[i], index: i, score: score})
		}
	}
	return out
}
