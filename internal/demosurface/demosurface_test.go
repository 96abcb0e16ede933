package demosurface

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"testing"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeries() []seriesdata.Series {
	data := make([]seriesdata.DataPoint, 0, 50)
	for i := 0; i < 50; i++ {
		data = append(data, seriesdata.DataPoint{X: float64(i), Y: float64(i % 7)})
	}
	return []seriesdata.Series{{ID: "a", Name: "Alpha", Visible: true, Data: data}}
}

func testViewport() seriesdata.Viewport {
	return seriesdata.Viewport{
		WidthPx: 400, HeightPx: 300,
		XScale: seriesdata.LinearScale{DataMin: 0, DataMax: 50, PixelMin: 0, PixelMax: 400},
		YScale: seriesdata.LinearScale{DataMin: 0, DataMax: 7, PixelMin: 300, PixelMax: 0},
	}
}

func TestVector_RenderProducesSVG(t *testing.T) {
	v := NewVector()
	var buf bytes.Buffer
	errCh := v.Initialize(context.Background(), &buf, testViewport())
	require.NoError(t, <-errCh)

	metrics := v.Render(testSeries(), testViewport(), map[string]int{"a": 0})
	assert.GreaterOrEqual(t, metrics.FrameTimeMS, 0.0)
	assert.True(t, bytes.Contains(buf.Bytes(), []byte("<svg")) || buf.Len() > 0)
}

func TestVector_InitializeRejectsWrongHandleType(t *testing.T) {
	v := NewVector()
	errCh := v.Initialize(context.Background(), 42, testViewport())
	assert.Error(t, <-errCh)
}

func TestRaster_RenderProducesPNG(t *testing.T) {
	r := NewRaster(400, 300)
	var buf bytes.Buffer
	errCh := r.Initialize(context.Background(), &buf, testViewport())
	require.NoError(t, <-errCh)

	metrics := r.Render(testSeries(), testViewport(), map[string]int{"a": 0})
	assert.GreaterOrEqual(t, metrics.FrameTimeMS, 0.0)
	require.Greater(t, buf.Len(), 8)
	pngSignature := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	assert.Equal(t, pngSignature, buf.Bytes()[:8])
}

func TestRaster_InitializeRejectsWrongHandleType(t *testing.T) {
	r := NewRaster(10, 10)
	errCh := r.Initialize(context.Background(), "not a writer", testViewport())
	assert.Error(t, <-errCh)
}

func TestRaster_InvisibleSeriesSkipped(t *testing.T) {
	r := NewRaster(100, 100)
	var buf bytes.Buffer
	errCh := r.Initialize(context.Background(), &buf, testViewport())
	require.NoError(t, <-errCh)

	series := testSeries()
	series[0].Visible = false
	metrics := r.Render(series, testViewport(), nil)
	assert.GreaterOrEqual(t, metrics.FrameTimeMS, 0.0)

	// Nothing is drawn, so every pixel keeps the background colour.
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	bg := color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			require.Equal(t, bg, color.RGBAModel.Convert(img.At(x, y)))
		}
	}
}
