// Package config loads and validates vizcore engine configuration.
//
// The schema mirrors the option table in the engine specification
// (thresholds, perf, lod, interaction, a11y groups) and follows the
// pointer-optional-field pattern: a partially specified JSON document
// leaves unset fields at their documented defaults instead of zeroing
// them out.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DeviceClass is the device-capability heuristic applied once at
// engine construction (or overridden explicitly).
type DeviceClass string

const (
	ClassDefault  DeviceClass = "default"
	ClassMobile   DeviceClass = "mobile"
	ClassLowPower DeviceClass = "low-power"
	ClassHighPerf DeviceClass = "high-perf"
)

// OutlierMethod selects the statistical method the LOD engine uses to
// flag outliers.
type OutlierMethod string

const (
	OutlierZScore OutlierMethod = "zscore"
	OutlierIQR    OutlierMethod = "iqr"
	OutlierMAD    OutlierMethod = "mad"
)

// ReducedMotion controls the accessibility rendering hint surfaces are
// expected to honor.
type ReducedMotion string

const (
	ReducedMotionAuto   ReducedMotion = "auto"
	ReducedMotionAlways ReducedMotion = "always"
	ReducedMotionNever  ReducedMotion = "never"
)

// TierName identifies one of the three logical render tiers.
type TierName string

const (
	TierVector      TierName = "vector"
	TierRaster      TierName = "raster"
	TierAccelerated TierName = "accelerated"
)

// Options is the root configuration document for a vizcore engine.
// Every field is optional; Defaults() supplies the base values and
// Validate() clamps anything that would otherwise violate an
// engine invariant.
type Options struct {
	Thresholds   ThresholdOptions   `json:"thresholds,omitempty"`
	Perf         PerfOptions        `json:"perf,omitempty"`
	LOD          LODOptions         `json:"lod,omitempty"`
	Interaction  InteractionOptions `json:"interaction,omitempty"`
	A11y         A11yOptions        `json:"a11y,omitempty"`
	DeviceClass  *DeviceClass       `json:"device_class,omitempty"`
}

// ThresholdOptions controls tier selection.
type ThresholdOptions struct {
	VecToRas    *int64    `json:"vec_to_ras,omitempty"`
	RasToAccel  *int64    `json:"ras_to_accel,omitempty"`
	PPPVec      *float64  `json:"ppp_vec,omitempty"`
	PPPRas      *float64  `json:"ppp_ras,omitempty"`
	PPPAccel    *float64  `json:"ppp_accel,omitempty"`
	ForceTier   *TierName `json:"force_tier,omitempty"`
	AutoDetect  *bool     `json:"auto_detect,omitempty"`
}

// PerfOptions controls frame-budget and degradation policy.
type PerfOptions struct {
	TargetFrameTimeMS     *float64 `json:"target_frame_time_ms,omitempty"`
	MaxFrameTimeMS        *float64 `json:"max_frame_time_ms,omitempty"`
	AutoDegrade           *bool    `json:"auto_degrade,omitempty"`
	DegradeFrameThreshold *int     `json:"degrade_frame_threshold,omitempty"`
	RingCapacity          *int     `json:"ring_capacity,omitempty"`
}

// LODOptions controls the downsampler.
type LODOptions struct {
	TemporalBucketing *bool          `json:"temporal_bucketing,omitempty"`
	Envelope          *bool          `json:"envelope,omitempty"`
	OutlierPreserve   *bool          `json:"outlier_preserve,omitempty"`
	ZoomRefine        *bool          `json:"zoom_refine,omitempty"`
	OutlierMethod     *OutlierMethod `json:"outlier_method,omitempty"`
	OutlierThreshold  *float64       `json:"outlier_threshold,omitempty"`
	MaxOutlierPercent *float64       `json:"max_outlier_percent,omitempty"`
}

// InteractionOptions controls the Interaction Coordinator.
type InteractionOptions struct {
	HoverRadiusPx    *float64 `json:"hover_radius,omitempty"`
	SelectionRadius  *float64 `json:"selection_radius,omitempty"`
	HoverDebounceMS  *int     `json:"hover_debounce_ms,omitempty"`
	ZoomDebounceMS   *int     `json:"zoom_debounce_ms,omitempty"`
	DoubleClickMS    *int     `json:"double_click_ms,omitempty"`
	KeyboardNavOn    *bool    `json:"keyboard_nav_on,omitempty"`
}

// A11yOptions controls accessibility-related rendering hints.
type A11yOptions struct {
	ReducedMotion *ReducedMotion `json:"reduced_motion,omitempty"`
	HighContrast  *bool          `json:"high_contrast,omitempty"`
}

func ptrInt64(v int64) *int64                 { return &v }
func ptrInt(v int) *int                       { return &v }
func ptrFloat64(v float64) *float64           { return &v }
func ptrBool(v bool) *bool                    { return &v }
func ptrTier(v TierName) *TierName            { return &v }
func ptrClass(v DeviceClass) *DeviceClass     { return &v }
func ptrMethod(v OutlierMethod) *OutlierMethod { return &v }
func ptrMotion(v ReducedMotion) *ReducedMotion { return &v }

// classThresholds returns the absolute-count and density boundaries
// for a device class, per the engine specification's threshold table.
func classThresholds(c DeviceClass) ThresholdOptions {
	switch c {
	case ClassMobile:
		return ThresholdOptions{
			VecToRas: ptrInt64(2000), RasToAccel: ptrInt64(20000),
			PPPVec: ptrFloat64(0.3), PPPRas: ptrFloat64(3), PPPAccel: ptrFloat64(30),
		}
	case ClassLowPower:
		return ThresholdOptions{
			VecToRas: ptrInt64(3000), RasToAccel: ptrInt64(30000),
			PPPVec: ptrFloat64(0.4), PPPRas: ptrFloat64(4), PPPAccel: ptrFloat64(40),
		}
	case ClassHighPerf:
		return ThresholdOptions{
			VecToRas: ptrInt64(10000), RasToAccel: ptrInt64(100000),
			PPPVec: ptrFloat64(1.0), PPPRas: ptrFloat64(10), PPPAccel: ptrFloat64(100),
		}
	default:
		return ThresholdOptions{
			VecToRas: ptrInt64(5000), RasToAccel: ptrInt64(50000),
			PPPVec: ptrFloat64(0.5), PPPRas: ptrFloat64(5), PPPAccel: ptrFloat64(50),
		}
	}
}

// Defaults returns an Options fully populated with the engine's
// documented defaults for the given device class.
func Defaults(class DeviceClass) Options {
	th := classThresholds(class)
	return Options{
		Thresholds: ThresholdOptions{
			VecToRas: th.VecToRas, RasToAccel: th.RasToAccel,
			PPPVec: th.PPPVec, PPPRas: th.PPPRas, PPPAccel: th.PPPAccel,
			AutoDetect: ptrBool(true),
		},
		Perf: PerfOptions{
			TargetFrameTimeMS:     ptrFloat64(16.67),
			MaxFrameTimeMS:        ptrFloat64(33.33),
			AutoDegrade:           ptrBool(true),
			DegradeFrameThreshold: ptrInt(10),
			RingCapacity:          ptrInt(60),
		},
		LOD: LODOptions{
			TemporalBucketing: ptrBool(true),
			Envelope:          ptrBool(true),
			OutlierPreserve:   ptrBool(true),
			ZoomRefine:        ptrBool(true),
			OutlierMethod:     ptrMethod(OutlierZScore),
			OutlierThreshold:  ptrFloat64(3.0),
			MaxOutlierPercent: ptrFloat64(10.0),
		},
		Interaction: InteractionOptions{
			HoverRadiusPx:   ptrFloat64(10),
			SelectionRadius: ptrFloat64(15),
			HoverDebounceMS: ptrInt(16),
			ZoomDebounceMS:  ptrInt(50),
			DoubleClickMS:   ptrInt(300),
			KeyboardNavOn:   ptrBool(true),
		},
		A11y: A11yOptions{
			ReducedMotion: ptrMotion(ReducedMotionAuto),
			HighContrast:  ptrBool(false),
		},
		DeviceClass: ptrClass(class),
	}
}

// Merge overlays non-nil fields of o onto a copy of base and returns
// the result. Used to apply a partially-specified document on top of
// device-class defaults.
func Merge(base, o Options) Options {
	out := base
	if o.Thresholds.VecToRas != nil {
		out.Thresholds.VecToRas = o.Thresholds.VecToRas
	}
	if o.Thresholds.RasToAccel != nil {
		out.Thresholds.RasToAccel = o.Thresholds.RasToAccel
	}
	if o.Thresholds.PPPVec != nil {
		out.Thresholds.PPPVec = o.Thresholds.PPPVec
	}
	if o.Thresholds.PPPRas != nil {
		out.Thresholds.PPPRas = o.Thresholds.PPPRas
	}
	if o.Thresholds.PPPAccel != nil {
		out.Thresholds.PPPAccel = o.Thresholds.PPPAccel
	}
	if o.Thresholds.ForceTier != nil {
		out.Thresholds.ForceTier = o.Thresholds.ForceTier
	}
	if o.Thresholds.AutoDetect != nil {
		out.Thresholds.AutoDetect = o.Thresholds.AutoDetect
	}
	if o.Perf.TargetFrameTimeMS != nil {
		out.Perf.TargetFrameTimeMS = o.Perf.TargetFrameTimeMS
	}
	if o.Perf.MaxFrameTimeMS != nil {
		out.Perf.MaxFrameTimeMS = o.Perf.MaxFrameTimeMS
	}
	if o.Perf.AutoDegrade != nil {
		out.Perf.AutoDegrade = o.Perf.AutoDegrade
	}
	if o.Perf.DegradeFrameThreshold != nil {
		out.Perf.DegradeFrameThreshold = o.Perf.DegradeFrameThreshold
	}
	if o.Perf.RingCapacity != nil {
		out.Perf.RingCapacity = o.Perf.RingCapacity
	}
	if o.LOD.TemporalBucketing != nil {
		out.LOD.TemporalBucketing = o.LOD.TemporalBucketing
	}
	if o.LOD.Envelope != nil {
		out.LOD.Envelope = o.LOD.Envelope
	}
	if o.LOD.OutlierPreserve != nil {
		out.LOD.OutlierPreserve = o.LOD.OutlierPreserve
	}
	if o.LOD.ZoomRefine != nil {
		out.LOD.ZoomRefine = o.LOD.ZoomRefine
	}
	if o.LOD.OutlierMethod != nil {
		out.LOD.OutlierMethod = o.LOD.OutlierMethod
	}
	if o.LOD.OutlierThreshold != nil {
		out.LOD.OutlierThreshold = o.LOD.OutlierThreshold
	}
	if o.LOD.MaxOutlierPercent != nil {
		out.LOD.MaxOutlierPercent = o.LOD.MaxOutlierPercent
	}
	if o.Interaction.HoverRadiusPx != nil {
		out.Interaction.HoverRadiusPx = o.Interaction.HoverRadiusPx
	}
	if o.Interaction.SelectionRadius != nil {
		out.Interaction.SelectionRadius = o.Interaction.SelectionRadius
	}
	if o.Interaction.HoverDebounceMS != nil {
		out.Interaction.HoverDebounceMS = o.Interaction.HoverDebounceMS
	}
	if o.Interaction.ZoomDebounceMS != nil {
		out.Interaction.ZoomDebounceMS = o.Interaction.ZoomDebounceMS
	}
	if o.Interaction.DoubleClickMS != nil {
		out.Interaction.DoubleClickMS = o.Interaction.DoubleClickMS
	}
	if o.Interaction.KeyboardNavOn != nil {
		out.Interaction.KeyboardNavOn = o.Interaction.KeyboardNavOn
	}
	if o.A11y.ReducedMotion != nil {
		out.A11y.ReducedMotion = o.A11y.ReducedMotion
	}
	if o.A11y.HighContrast != nil {
		out.A11y.HighContrast = o.A11y.HighContrast
	}
	if o.DeviceClass != nil {
		out.DeviceClass = o.DeviceClass
	}
	return out
}

// Validate clamps threshold/budget fields that would otherwise violate
// an engine invariant (a negative frame budget is reset to its default
// of 16.67ms target / 33.33ms max) and returns a descriptive error only
// for a value that cannot be sensibly clamped: an unknown outlier_method.
func (o *Options) Validate() error {
	if o.Thresholds.VecToRas != nil && *o.Thresholds.VecToRas < 100 {
		*o.Thresholds.VecToRas = 100
	}
	if o.Thresholds.RasToAccel != nil && o.Thresholds.VecToRas != nil &&
		*o.Thresholds.RasToAccel < *o.Thresholds.VecToRas {
		*o.Thresholds.RasToAccel = *o.Thresholds.VecToRas
	}
	if o.Perf.TargetFrameTimeMS != nil && *o.Perf.TargetFrameTimeMS < 0 {
		*o.Perf.TargetFrameTimeMS = 16.67
	}
	if o.Perf.MaxFrameTimeMS != nil && *o.Perf.MaxFrameTimeMS < 0 {
		*o.Perf.MaxFrameTimeMS = 33.33
	}
	if o.Perf.DegradeFrameThreshold != nil && *o.Perf.DegradeFrameThreshold < 1 {
		*o.Perf.DegradeFrameThreshold = 1
	}
	if o.Perf.RingCapacity != nil && *o.Perf.RingCapacity < 1 {
		*o.Perf.RingCapacity = 1
	}
	if o.LOD.OutlierMethod != nil {
		switch *o.LOD.OutlierMethod {
		case OutlierZScore, OutlierIQR, OutlierMAD:
		default:
			return fmt.Errorf("unknown outlier_method %q", *o.LOD.OutlierMethod)
		}
	}
	if o.LOD.MaxOutlierPercent != nil {
		if *o.LOD.MaxOutlierPercent < 0 {
			*o.LOD.MaxOutlierPercent = 0
		}
		if *o.LOD.MaxOutlierPercent > 100 {
			*o.LOD.MaxOutlierPercent = 100
		}
	}
	if o.Interaction.HoverDebounceMS != nil && *o.Interaction.HoverDebounceMS < 0 {
		*o.Interaction.HoverDebounceMS = 0
	}
	if o.Interaction.ZoomDebounceMS != nil && *o.Interaction.ZoomDebounceMS < 0 {
		*o.Interaction.ZoomDebounceMS = 0
	}
	if o.Interaction.DoubleClickMS != nil && *o.Interaction.DoubleClickMS < 0 {
		*o.Interaction.DoubleClickMS = 0
	}
	return nil
}

// maxConfigFileSize caps JSON config documents, same rationale as the
// teacher's tuning-file loader: configuration is never this large in
// practice and a size cap keeps a malformed path from being read in full.
const maxConfigFileSize = 1 * 1024 * 1024

// LoadOptions loads a partial Options document from a JSON file and
// merges it onto device-class defaults.
func LoadOptions(path string, class DeviceClass) (Options, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Options{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return Options{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return Options{}, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var partial Options
	if err := json.Unmarshal(data, &partial); err != nil {
		return Options{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if partial.DeviceClass != nil {
		class = *partial.DeviceClass
	}
	merged := Merge(Defaults(class), partial)
	if err := merged.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return merged, nil
}

// MustLoadDefaultOptions returns Defaults(ClassDefault) already
// validated; intended for tests and call sites that don't need a
// config file at all.
func MustLoadDefaultOptions() Options {
	o := Defaults(ClassDefault)
	if err := o.Validate(); err != nil {
		panic(err)
	}
	return o
}

// FrameBudget converts the PerfOptions target/max into time.Duration,
// parsing "ms" fields stored as float64 milliseconds.
func (p PerfOptions) FrameBudget() (target, max time.Duration) {
	if p.TargetFrameTimeMS != nil {
		target = time.Duration(*p.TargetFrameTimeMS * float64(time.Millisecond))
	}
	if p.MaxFrameTimeMS != nil {
		max = time.Duration(*p.MaxFrameTimeMS * float64(time.Millisecond))
	}
	return
}
