// Package demosurface provides two reference Surface implementations
// exercising the Surface contract end to end: Vector (SVG via
// gonum.org/v1/plot) and Raster (a rasterized pixel buffer via the
// standard library's image/png). Neither is meant for production use;
// they exist to give the Tier Engine and demo binary something real to
// render to without a browser or GPU.
package demosurface

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/billyribeiro-ux/vizcore/internal/lod"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/surface"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"
)

// renderTarget mirrors the Tier Engine's own downsample-target
// heuristic (roughly two candidate points per pixel of viewport
// width) so a demo surface draws at the same resolution the engine
// budgeted for, not an independent guess.
func renderTarget(viewport seriesdata.Viewport) int {
	w := int(viewport.InnerWidth())
	if w < 250 {
		w = 250
	}
	return w * 2
}

// Vector renders the current frame as an SVG draw list: one line for
// each visible series' bucket max envelope, one for its min envelope,
// and a scatter of flagged outliers — grounded on the teacher's
// GridPlotter, repointed from background-cell time series onto LOD
// bucket envelopes.
type Vector struct {
	surface.BaseHitTest

	mu  sync.Mutex
	out io.Writer

	widthPt, heightPt vg.Length
}

// NewVector constructs a Vector surface. widthPt/heightPt size the SVG
// canvas in points; 720x480 matches the teacher's plot defaults.
func NewVector() *Vector {
	return &Vector{widthPt: 720, heightPt: 480}
}

// Initialize stores handle as the surface's SVG output writer. handle
// must be an io.Writer (a file, an in-memory buffer, an HTTP response).
func (v *Vector) Initialize(ctx context.Context, handle surface.Handle, viewport seriesdata.Viewport) <-chan error {
	done := make(chan error, 1)
	w, ok := handle.(io.Writer)
	if !ok {
		done <- fmt.Errorf("demosurface: Vector requires an io.Writer handle, got %T", handle)
		return done
	}
	v.mu.Lock()
	v.out = w
	v.mu.Unlock()
	done <- nil
	return done
}

func (v *Vector) Render(series []seriesdata.Series, viewport seriesdata.Viewport, lodBySeriesID map[string]int) surface.Metrics {
	start := time.Now()
	v.mu.Lock()
	defer v.mu.Unlock()

	p := plot.New()
	p.Title.Text = "vizcore vector frame"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	target := renderTarget(viewport)
	cfg := lod.DefaultConfig()

	for _, s := range series {
		if !s.Visible {
			continue
		}
		result := lod.Downsample(s.Data, target, cfg, nil)
		// Gap buckets break the envelope into separate runs: a NaN
		// y-value must never be drawn as a connecting segment (never
		// connect across a gap).
		var maxRuns, minRuns []plotter.XYs
		var outlierPts plotter.XYs
		for _, b := range result.Buckets {
			if b.Gap {
				maxRuns = append(maxRuns, nil)
				minRuns = append(minRuns, nil)
				continue
			}
			if len(maxRuns) == 0 {
				maxRuns = append(maxRuns, nil)
				minRuns = append(minRuns, nil)
			}
			last := len(maxRuns) - 1
			maxRuns[last] = append(maxRuns[last], plotter.XY{X: b.TStart, Y: b.MaxY})
			minRuns[last] = append(minRuns[last], plotter.XY{X: b.TStart, Y: b.MinY})
			for _, o := range b.Outliers {
				outlierPts = append(outlierPts, plotter.XY{X: o.X, Y: o.Y})
			}
		}
		if len(maxRuns) == 0 {
			continue
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		maxLegended, minLegended := false, false
		for i, run := range maxRuns {
			if len(run) < 2 {
				continue
			}
			if maxLine, err := plotter.NewLine(run); err == nil {
				maxLine.Width = vg.Points(1)
				p.Add(maxLine)
				if !maxLegended {
					p.Legend.Add(name+" max", maxLine)
					maxLegended = true
				}
			}
			if minRun := minRuns[i]; len(minRun) >= 2 {
				if minLine, err := plotter.NewLine(minRun); err == nil {
					minLine.Width = vg.Points(1)
					minLine.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
					p.Add(minLine)
					if !minLegended {
						p.Legend.Add(name+" min", minLine)
						minLegended = true
					}
				}
			}
		}
		if len(outlierPts) > 0 {
			if scatter, err := plotter.NewScatter(outlierPts); err == nil {
				scatter.Shape = draw.CrossGlyph{}
				p.Add(scatter)
				p.Legend.Add(name+" outliers", scatter)
			}
		}
	}

	canvas := vgsvg.New(v.widthPt, v.heightPt)
	p.Draw(draw.New(canvas))
	_, _ = canvas.WriteTo(v.out)

	return surface.Metrics{FrameTimeMS: float64(time.Since(start).Microseconds()) / 1000}
}

func (v *Vector) Resize(widthPx, heightPx float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.widthPt = vg.Length(widthPx)
	v.heightPt = vg.Length(heightPx)
}

func (v *Vector) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.out = nil
}
