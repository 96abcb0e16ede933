// Package lod implements the deterministic temporal-bucket downsampler:
// given a series and a target bucket count, it produces an ordered set
// of buckets that preserve the series' min/max envelope and its
// statistically significant outliers.
//
// Determinism is the contract: same inputs always yield a
// byte-identical Result. No randomness, no clock reads.
package lod

import "github.com/billyribeiro-ux/vizcore/internal/seriesdata"

// Level is the coarse level-of-detail classification derived from a
// Result's compression ratio.
type Level int

const (
	LevelMinimal Level = 0
	LevelLow     Level = 1
	LevelMedium  Level = 2
	LevelHigh    Level = 3
	LevelFull    Level = 4
)

// levelForRatio maps a compression ratio to a Level per spec.md §3:
// >=100 -> 0, >=50 -> 1, >=10 -> 2, >=2 -> 3, else -> 4.
func levelForRatio(ratio float64) Level {
	switch {
	case ratio >= 100:
		return LevelMinimal
	case ratio >= 50:
		return LevelLow
	case ratio >= 10:
		return LevelMedium
	case ratio >= 2:
		return LevelHigh
	default:
		return LevelFull
	}
}

// Bucket is one temporal aggregation unit.
type Bucket struct {
	TStart, TEnd   float64
	MinY, MaxY     float64
	AvgY           float64
	Count          int
	Representative seriesdata.DataPoint
	Outliers       []seriesdata.DataPoint
	// Gap marks a bucket whose points are all NaN/Inf y-values — a
	// hole in the series, not a zero reading. MinY/MaxY/AvgY are NaN
	// on a Gap bucket; every Surface must break its line/polyline here
	// rather than connecting across it (spec.md §4.3).
	Gap bool
}

// Result is the downsampler's output.
type Result struct {
	Buckets          []Bucket
	TotalPoints      int
	SampledPoints    int
	CompressionRatio float64
	Level            Level
	OutlierCount     int
}

// TimeWindow pins the temporal range a downsample call should cover,
// instead of deriving it from the input's own extrema — used by zoom
// refinement and by callers that want bucket boundaries stable across
// frames even as points stream in or drop out.
type TimeWindow struct {
	Lo, Hi float64
}

// OutlierMethod selects how outliers are statistically identified.
type OutlierMethod string

const (
	MethodZScore OutlierMethod = "zscore"
	MethodIQR    OutlierMethod = "iqr"
	MethodMAD    OutlierMethod = "mad"
)

// Config controls one Downsample call. Fields are used exactly as
// given, zero values included; DefaultConfig returns the documented
// defaults to start from.
type Config struct {
	TemporalBucketing bool
	Envelope          bool
	OutlierPreserve   bool
	Method            OutlierMethod
	Threshold         float64
	MaxOutlierPercent float64
}

// DefaultConfig returns the documented default LOD configuration.
func DefaultConfig() Config {
	return Config{
		TemporalBucketing: true,
		Envelope:          true,
		OutlierPreserve:   true,
		Method:            MethodZScore,
		Threshold:         3.0,
		MaxOutlierPercent: 10.0,
	}
}
