// Package a11y produces a structured, deterministic textual summary
// of a series set for screen readers and other non-visual consumers —
// per-series statistics, trend classification, and flagged anomalies,
// computed without any rendering or I/O.
package a11y

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"gonum.org/v1/gonum/stat"
)

// Trend classifies the overall direction of a series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// trendThreshold is the minimum relative change, as a fraction of the
// series mean, that counts as a trend rather than noise.
const trendThreshold = 0.01

// Anomaly is one flagged out-of-range sample.
type Anomaly struct {
	SeriesID string
	Point    seriesdata.DataPoint
	Severity float64 // |y - mean| / stddev
}

// SeriesSummary holds the statistics computed for one series.
type SeriesSummary struct {
	SeriesID     string
	Name         string
	Count        int
	Min, Max     float64
	Mean, StdDev float64
	Trend        Trend
	TrendStrength float64
}

// Summary is the full accessibility summary for a set of series.
type Summary struct {
	Series      []SeriesSummary
	TimeRangeLo float64
	TimeRangeHi float64
	GlobalMin   float64
	GlobalMax   float64
	Anomalies   []Anomaly
}

// maxAnomalies caps how many anomalies Summarize reports, keeping the
// plain-text rendering readable even over a very noisy series set.
const maxAnomalies = 10

// anomalyZThreshold flags points more than this many standard
// deviations from their series mean.
const anomalyZThreshold = 3.0

// Summarize computes a deterministic accessibility summary for the
// given series. Invisible series and non-finite y-values are excluded
// from statistics, matching the rendering surfaces' own treatment of
// NaN/Inf as gaps.
func Summarize(series []seriesdata.Series) Summary {
	var out Summary
	out.GlobalMin = math.Inf(1)
	out.GlobalMax = math.Inf(-1)
	out.TimeRangeLo = math.Inf(1)
	out.TimeRangeHi = math.Inf(-1)

	var anomalies []Anomaly

	for _, s := range series {
		if !s.Visible {
			continue
		}
		ys := make([]float64, 0, len(s.Data))
		for _, p := range s.Data {
			if !isFinite(p.Y) {
				continue
			}
			ys = append(ys, p.Y)
			if p.X < out.TimeRangeLo {
				out.TimeRangeLo = p.X
			}
			if p.X > out.TimeRangeHi {
				out.TimeRangeHi = p.X
			}
		}
		if len(ys) == 0 {
			continue
		}

		minY, maxY := ys[0], ys[0]
		for _, y := range ys {
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		mean, stddev := stat.MeanStdDev(ys, nil)

		ss := SeriesSummary{
			SeriesID: s.ID,
			Name:     s.Name,
			Count:    len(ys),
			Min:      minY,
			Max:      maxY,
			Mean:     mean,
			StdDev:   stddev,
		}
		ss.Trend, ss.TrendStrength = classifyTrend(s.Data, mean)
		out.Series = append(out.Series, ss)

		if minY < out.GlobalMin {
			out.GlobalMin = minY
		}
		if maxY > out.GlobalMax {
			out.GlobalMax = maxY
		}

		if stddev > 0 {
			for _, p := range s.Data {
				if !isFinite(p.Y) {
					continue
				}
				z := math.Abs(p.Y-mean) / stddev
				if z > anomalyZThreshold {
					anomalies = append(anomalies, Anomaly{SeriesID: s.ID, Point: p, Severity: z})
				}
			}
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool { return anomalies[i].Severity > anomalies[j].Severity })
	if len(anomalies) > maxAnomalies {
		anomalies = anomalies[:maxAnomalies]
	}
	out.Anomalies = anomalies

	if len(out.Series) == 0 {
		out.TimeRangeLo, out.TimeRangeHi = 0, 0
		out.GlobalMin, out.GlobalMax = 0, 0
	}
	return out
}

func isFinite(y float64) bool {
	return !math.IsNaN(y) && !math.IsInf(y, 0)
}

// classifyTrend compares the first and last finite samples (by
// declared order, not re-sorted — a series is expected to already be
// time-ordered) against the series mean.
func classifyTrend(points []seriesdata.DataPoint, mean float64) (Trend, float64) {
	var first, last float64
	haveFirst := false
	for _, p := range points {
		if !isFinite(p.Y) {
			continue
		}
		if !haveFirst {
			first = p.Y
			haveFirst = true
		}
		last = p.Y
	}
	if !haveFirst {
		return TrendStable, 0
	}
	denom := math.Max(math.Abs(mean), 1e-9)
	change := (last - first) / denom
	strength := math.Min(math.Abs(change), 1)
	switch {
	case change > trendThreshold:
		return TrendUp, strength
	case change < -trendThreshold:
		return TrendDown, strength
	default:
		return TrendStable, strength
	}
}

// Render renders a Summary as deterministic plain text, suitable for a
// screen reader or a log line — never an HTML/rich-text payload.
func Render(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d series, time range [%g, %g], value range [%g, %g]\n",
		len(s.Series), s.TimeRangeLo, s.TimeRangeHi, s.GlobalMin, s.GlobalMax)
	for _, ss := range s.Series {
		name := ss.Name
		if name == "" {
			name = ss.SeriesID
		}
		fmt.Fprintf(&b, "- %s: %d points, min %g, max %g, mean %g, stddev %g, trend %s (%.2f)\n",
			name, ss.Count, ss.Min, ss.Max, ss.Mean, ss.StdDev, ss.Trend, ss.TrendStrength)
	}
	if len(s.Anomalies) == 0 {
		b.WriteString("no anomalies detected\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%d anomal", len(s.Anomalies))
	if len(s.Anomalies) == 1 {
		b.WriteString("y:\n")
	} else {
		b.WriteString("ies:\n")
	}
	for _, a := range s.Anomalies {
		fmt.Fprintf(&b, "- %s at x=%g y=%g (%.1f stddev)\n", a.SeriesID, a.Point.X, a.Point.Y, a.Severity)
	}
	return b.String()
}
