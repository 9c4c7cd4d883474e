package pipeline

import (
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
)

const driftWindow = 50

// DriftMonitor watches the rolling mean of alignment deltas. A mean that creeps towards the
// tolerance usually means the sensor clock and the annotation clock have drifted apart.
type DriftMonitor struct {
	log       logs.Log
	threshold int64
	deltas    ringbuffer.RingP[int64]
	warned    bool
}

// NewDriftMonitor warns once when the rolling mean delta exceeds thresholdMS
func NewDriftMonitor(log logs.Log, thresholdMS int64) *DriftMonitor {
	return &DriftMonitor{
		log:       log,
		threshold: thresholdMS,
		deltas:    ringbuffer.NewRingP[int64](driftWindow),
	}
}

func (d *DriftMonitor) Add(deltaMS int64) {
	d.deltas.Add(deltaMS)
	if d.warned || d.threshold <= 0 || d.deltas.Len() < driftWindow {
		return
	}
	if mean := d.Mean(); mean > float64(d.threshold) {
		d.log.Warnf("Mean alignment delta over the last %v matches is %.1f ms. Sensor and annotation clocks may be drifting apart", driftWindow, mean)
		d.warned = true
	}
}

// Mean returns the mean of the most recent deltas, or zero if there are none
func (d *DriftMonitor) Mean() float64 {
	n := d.deltas.Len()
	if n == 0 {
		return 0
	}
	sum := int64(0)
	for i := 0; i < n; i++ {
		sum += d.deltas.Peek(i)
	}
	return float64(sum) / float64(n)
}

func (d *DriftMonitor) Warned() bool {
	return d.warned
}
