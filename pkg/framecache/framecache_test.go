package framecache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/stretchr/testify/require"
)

func makeFrame(value float32) *thermal.Frame {
	f := thermal.NewFrame(thermal.Shape{Width: 3, Height: 2}, thermal.UnitCelsius)
	for i := range f.Pixels {
		f.Pixels[i] = value + float32(i)
	}
	return f
}

func TestFrameCache(t *testing.T) {
	c := NewFrameCache()
	require.Nil(t, c.GetFrame(1000))
	c.AddFrame(3000, makeFrame(3))
	c.AddFrame(1000, makeFrame(1))
	c.AddFrame(2000, makeFrame(2))
	require.Equal(t, 3, c.Len())
	require.Equal(t, 3*6*4, c.MemoryUsed)
	require.True(t, c.Has(2000))
	require.Equal(t, float32(2), c.GetFrame(2000).Pixels[0])
	require.Equal(t, []int64{1000, 2000, 3000}, c.Times())

	// Replacing keeps the accounting straight
	c.AddFrame(2000, makeFrame(20))
	require.Equal(t, 3, c.Len())
	require.Equal(t, 3*6*4, c.MemoryUsed)
	require.Equal(t, float32(20), c.GetFrame(2000).Pixels[0])

	r := c.Range(1500, 3000)
	require.Len(t, r, 2)
	require.Equal(t, float32(20), r[0].Pixels[0])
	require.Equal(t, float32(3), r[1].Pixels[0])
}

func TestSnapshot(t *testing.T) {
	c := NewFrameCache()
	c.AddFrame(1700000000100, makeFrame(21.5))
	c.AddFrame(1700000000200, makeFrame(22.5))

	buf := bytes.Buffer{}
	require.NoError(t, c.Save(&buf))

	d := NewFrameCache()
	require.NoError(t, d.Load(&buf))
	require.Equal(t, c.Times(), d.Times())
	require.Equal(t, c.MemoryUsed, d.MemoryUsed)
	f := d.GetFrame(1700000000200)
	require.Equal(t, thermal.UnitCelsius, f.Unit)
	require.Equal(t, makeFrame(22.5).Pixels, f.Pixels)
	require.True(t, f.HasTimestamp)
	require.Equal(t, int64(1700000000200), f.TimestampMS())

	fn := filepath.Join(t.TempDir(), "cache.cbor")
	require.NoError(t, c.SaveFile(fn))
	e := NewFrameCache()
	require.NoError(t, e.LoadFile(fn))
	require.Equal(t, 2, e.Len())

	require.Error(t, NewFrameCache().Load(bytes.NewReader([]byte{0xff, 0x00})))
}
