package lod

import (
	"testing"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/stretchr/testify/assert"
)

func uniformWithOutlier(n int, outlierY float64) []seriesdata.DataPoint {
	pts := make([]seriesdata.DataPoint, 0, n+1)
	for i := 0; i < n; i++ {
		pts = append(pts, seriesdata.DataPoint{X: float64(i), Y: float64(i % 5), ID: "normal"})
	}
	pts = append(pts, seriesdata.DataPoint{X: float64(n), Y: outlierY, ID: "outlier"})
	return pts
}

func TestDetectOutliers_ZScoreRequiresThreeSamples(t *testing.T) {
	pts := []seriesdata.DataPoint{{X: 0, Y: 1}, {X: 1, Y: 1000}}
	out := detectOutliers(pts, Config{OutlierPreserve: true, Method: MethodZScore, Threshold: 3, MaxOutlierPercent: 100})
	assert.Empty(t, out)
}

func TestDetectOutliers_ZScoreZeroStddevNoOutliers(t *testing.T) {
	pts := []seriesdata.DataPoint{{X: 0, Y: 5}, {X: 1, Y: 5}, {X: 2, Y: 5}}
	out := detectOutliers(pts, Config{OutlierPreserve: true, Method: MethodZScore, Threshold: 3, MaxOutlierPercent: 100})
	assert.Empty(t, out)
}

func TestDetectOutliers_ZScoreFindsAnomaly(t *testing.T) {
	pts := uniformWithOutlier(50, 1e6)
	out := detectOutliers(pts, Config{OutlierPreserve: true, Method: MethodZScore, Threshold: 3, MaxOutlierPercent: 100})
	require := assert.New(t)
	require.NotEmpty(out)
	require.Equal("outlier", out[0].ID)
}

func TestDetectOutliers_IQRRequiresFourSamples(t *testing.T) {
	pts := []seriesdata.DataPoint{{X: 0, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 1000}}
	out := detectOutliers(pts, Config{OutlierPreserve: true, Method: MethodIQR, MaxOutlierPercent: 100})
	assert.Empty(t, out)
}

func TestDetectOutliers_IQRFindsAnomaly(t *testing.T) {
	pts := uniformWithOutlier(50, 1e6)
	out := detectOutliers(pts, Config{OutlierPreserve: true, Method: MethodIQR, MaxOutlierPercent: 100})
	assert.NotEmpty(t, out)
}

func TestDetectOutliers_MADZeroMADNoOutliers(t *testing.T) {
	pts := []seriesdata.DataPoint{{X: 0, Y: 5}, {X: 1, Y: 5}, {X: 2, Y: 5}, {X: 3, Y: 1000}}
	// median=5, all deviations from median are 0 or 995; MAD of [0,0,0,995] is 0.
	out := detectOutliers(pts, Config{OutlierPreserve: true, Method: MethodMAD, Threshold: 3, MaxOutlierPercent: 100})
	assert.Empty(t, out)
}

func TestDetectOutliers_PercentileCap(t *testing.T) {
	pts := make([]seriesdata.DataPoint, 0, 20)
	for i := 0; i < 20; i++ {
		// half the points are wild; cap should keep only the most extreme 10%.
		y := 0.0
		if i%2 == 0 {
			y = float64(1000 + i)
		}
		pts = append(pts, seriesdata.DataPoint{X: float64(i), Y: y})
	}
	out := detectOutliers(pts, Config{OutlierPreserve: true, Method: MethodZScore, Threshold: 0.01, MaxOutlierPercent: 10})
	assert.LessOrEqual(t, len(out), 2) // floor(20 * 10/100) == 2
}

func TestDetectOutliers_DisabledReturnsNil(t *testing.T) {
	pts := uniformWithOutlier(50, 1e6)
	out := detectOutliers(pts, Config{OutlierPreserve: false})
	assert.Nil(t, out)
}
