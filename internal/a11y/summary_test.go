package a11y

import (
	"math"
	"strings"
	"testing"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_BasicStats(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Name: "Alpha", Visible: true, Data: []seriesdata.DataPoint{
			{X: 0, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3},
		}},
	}
	s := Summarize(series)
	require.Len(t, s.Series, 1)
	assert.Equal(t, 3, s.Series[0].Count)
	assert.Equal(t, 1.0, s.Series[0].Min)
	assert.Equal(t, 3.0, s.Series[0].Max)
	assert.InDelta(t, 2.0, s.Series[0].Mean, 1e-9)
	assert.Equal(t, 0.0, s.TimeRangeLo)
	assert.Equal(t, 2.0, s.TimeRangeHi)
}

func TestSummarize_InvisibleSeriesExcluded(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: false, Data: []seriesdata.DataPoint{{X: 0, Y: 1}}},
	}
	s := Summarize(series)
	assert.Len(t, s.Series, 0)
}

func TestSummarize_NaNExcludedFromStats(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Visible: true, Data: []seriesdata.DataPoint{
			{X: 0, Y: 1}, {X: 1, Y: math.NaN()}, {X: 2, Y: 3},
		}},
	}
	s := Summarize(series)
	require.Len(t, s.Series, 1)
	assert.Equal(t, 2, s.Series[0].Count)
}

func TestClassifyTrend_Up(t *testing.T) {
	points := []seriesdata.DataPoint{{X: 0, Y: 1}, {X: 1, Y: 10}}
	trend, strength := classifyTrend(points, 5.5)
	assert.Equal(t, TrendUp, trend)
	assert.Greater(t, strength, 0.0)
}

func TestClassifyTrend_Down(t *testing.T) {
	points := []seriesdata.DataPoint{{X: 0, Y: 10}, {X: 1, Y: 1}}
	trend, _ := classifyTrend(points, 5.5)
	assert.Equal(t, TrendDown, trend)
}

func TestClassifyTrend_Stable(t *testing.T) {
	points := []seriesdata.DataPoint{{X: 0, Y: 5}, {X: 1, Y: 5.001}}
	trend, _ := classifyTrend(points, 5.0005)
	assert.Equal(t, TrendStable, trend)
}

func TestSummarize_AnomaliesDetectedAndCapped(t *testing.T) {
	data := make([]seriesdata.DataPoint, 0, 30)
	for i := 0; i < 200; i++ {
		data = append(data, seriesdata.DataPoint{X: float64(i), Y: 10})
	}
	for i := 0; i < 15; i++ {
		data = append(data, seriesdata.DataPoint{X: float64(200 + i), Y: 1000 + float64(i)})
	}
	series := []seriesdata.Series{{ID: "a", Visible: true, Data: data}}
	s := Summarize(series)
	assert.LessOrEqual(t, len(s.Anomalies), maxAnomalies)
	assert.Greater(t, len(s.Anomalies), 0)
	for i := 1; i < len(s.Anomalies); i++ {
		assert.GreaterOrEqual(t, s.Anomalies[i-1].Severity, s.Anomalies[i].Severity)
	}
}

func TestRender_NoAnomalies(t *testing.T) {
	series := []seriesdata.Series{
		{ID: "a", Name: "Alpha", Visible: true, Data: []seriesdata.DataPoint{{X: 0, Y: 1}, {X: 1, Y: 1}}},
	}
	text := Render(Summarize(series))
	assert.True(t, strings.Contains(text, "Alpha"))
	assert.True(t, strings.Contains(text, "no anomalies detected"))
}
