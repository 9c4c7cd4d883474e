package perfstats

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	var stat atomic.Uint64
	Update(&stat, 64*time.Nanosecond)
	require.Equal(t, uint64(64), stat.Load())
	Update(&stat, 128*time.Nanosecond)
	require.Equal(t, uint64(65), stat.Load())
	Update(&stat, -time.Second)
	require.Equal(t, uint64(63), stat.Load())

	s := PerfStats{}
	Update(&s.RenderNanoseconds, 2*time.Millisecond)
	require.Equal(t, 2.0, s.Snapshot().RenderMS)
	require.Contains(t, s.String(), "Render: 2.00 ms/frame")
}

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())
	a.AddSample(time.Millisecond)
	a.AddSample(3 * time.Millisecond)
	require.Equal(t, 2*time.Millisecond, a.Average())
	a.Reset()
	require.Equal(t, int64(0), a.Samples)
}
