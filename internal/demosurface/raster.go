package demosurface

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"
	"time"

	"github.com/billyribeiro-ux/vizcore/internal/lod"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/surface"
)

// Raster renders the current frame to an in-memory RGBA pixel buffer
// and encodes it as PNG. The teacher has no from-scratch rasterizer to
// ground this on (its raster-equivalent output is the LiDAR grid
// heatmap, itself built from go-echarts rather than a pixel buffer);
// rasterizing a line plot directly onto an image.RGBA is ordinary,
// well-understood standard-library territory with no ecosystem
// convention worth displacing it — see DESIGN.md.
type Raster struct {
	surface.BaseHitTest

	mu                sync.Mutex
	out               io.Writer
	widthPx, heightPx int

	palette []color.RGBA
}

// NewRaster constructs a Raster surface at the given pixel dimensions.
func NewRaster(widthPx, heightPx int) *Raster {
	return &Raster{
		widthPx: widthPx, heightPx: heightPx,
		palette: []color.RGBA{
			{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
			{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
			{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
			{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
			{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
		},
	}
}

// Initialize stores handle as the surface's PNG output writer.
func (r *Raster) Initialize(ctx context.Context, handle surface.Handle, viewport seriesdata.Viewport) <-chan error {
	done := make(chan error, 1)
	w, ok := handle.(io.Writer)
	if !ok {
		done <- fmt.Errorf("demosurface: Raster requires an io.Writer handle, got %T", handle)
		return done
	}
	r.mu.Lock()
	r.out = w
	r.mu.Unlock()
	done <- nil
	return done
}

func (r *Raster) Render(series []seriesdata.Series, viewport seriesdata.Viewport, lodBySeriesID map[string]int) surface.Metrics {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, r.widthPx, r.heightPx))
	fillRect(img, 0, 0, r.widthPx, r.heightPx, color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff})

	target := renderTarget(viewport)
	cfg := lod.DefaultConfig()

	for i, s := range series {
		if !s.Visible {
			continue
		}
		col := r.palette[i%len(r.palette)]
		result := lod.Downsample(s.Data, target, cfg, nil)
		var prevX, prevY int
		havePrev := false
		for _, b := range result.Buckets {
			if b.Gap {
				// Never connect across a gap: break the polyline here.
				havePrev = false
				continue
			}
			px := int(viewport.XScale.ToPixel(b.TStart))
			py := int(viewport.YScale.ToPixel(b.AvgY))
			if havePrev {
				drawLine(img, prevX, prevY, px, py, col)
			}
			prevX, prevY = px, py
			havePrev = true
		}
	}

	_ = png.Encode(r.out, img)
	return surface.Metrics{FrameTimeMS: float64(time.Since(start).Microseconds()) / 1000}
}

func (r *Raster) Resize(widthPx, heightPx float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widthPx = int(widthPx)
	r.heightPx = int(heightPx)
}

func (r *Raster) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = nil
}

func fillRect(img *image.RGBA, x0, y0, w, h int, c color.RGBA) {
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawLine rasterizes a line segment with Bresenham's algorithm,
// clipping any point outside the image bounds.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := int(math.Abs(float64(x1 - x0)))
	dy := -int(math.Abs(float64(y1 - y0)))
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	bounds := img.Bounds()
	for {
		if x0 >= bounds.Min.X && x0 < bounds.Max.X && y0 >= bounds.Min.Y && y0 < bounds.Max.Y {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}
