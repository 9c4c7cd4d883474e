package pipeline

import (
	"context"

	"github.com/cyclopcam/thermview/pkg/framestore"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

// PayloadSource returns the raw frames of a sensor in [startMS, endMS], in ascending time order.
// Both tdengine.Client and framestore.Store are sources.
type PayloadSource interface {
	QueryRange(ctx context.Context, sensor string, startMS, endMS int64) ([]thermal.Payload, error)
}

// ArchivingSource copies everything it fetches from Remote into Archive
type ArchivingSource struct {
	Remote  PayloadSource
	Archive *framestore.Store
}

func (a *ArchivingSource) QueryRange(ctx context.Context, sensor string, startMS, endMS int64) ([]thermal.Payload, error) {
	payloads, err := a.Remote.QueryRange(ctx, sensor, startMS, endMS)
	if err != nil {
		return nil, err
	}
	if err := a.Archive.Put(sensor, payloads); err != nil {
		a.Archive.Log.Warnf("Failed to archive %v payloads of %v: %v", len(payloads), sensor, err)
	}
	return payloads, nil
}
