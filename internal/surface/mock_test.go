package surface

import (
	"context"
	"testing"
	"time"

	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_InitializeThenRender(t *testing.T) {
	m := NewMock("vector")
	select {
	case err := <-m.Initialize(context.Background(), nil, seriesdata.Viewport{}):
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("initialize never completed")
	}
	assert.True(t, m.Initialized())

	m.Render([]seriesdata.Series{{ID: "a"}}, seriesdata.Viewport{}, nil)
	require.Len(t, m.Renders(), 1)
	assert.Equal(t, 1, m.Renders()[0].SeriesCount)
}

func TestMock_Destroy(t *testing.T) {
	m := NewMock("raster")
	m.Destroy()
	assert.True(t, m.Destroyed())
}

func TestBaseHitTest_NilIndex(t *testing.T) {
	b := BaseHitTest{}
	_, ok := b.NearestHit(nil, 0, 0, 10)
	assert.False(t, ok)
	assert.Nil(t, b.RegionHit(nil, 0, 0, 1, 1))
}
