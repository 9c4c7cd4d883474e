package pipeline

import (
	"errors"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/framestore"
	"github.com/cyclopcam/thermview/pkg/tdengine"
)

var ErrNoArchive = errors.New("Offline mode needs an archive. Set 'archive' in the config")

// OptionsFromConfig returns the session options described by cfg.
// zeroFillDefault applies if the config does not say whether to zero-fill.
func OptionsFromConfig(cfg *config.Config, zeroFillDefault bool) Options {
	opts := DefaultOptions()
	opts.Shape = cfg.Shape()
	opts.Align = cfg.BatchOptions()
	opts.Scale = cfg.Render.Scale
	opts.ZeroFill = cfg.ZeroFillOr(zeroFillDefault)
	return opts
}

// OpenSource returns the payload source described by cfg.
// With offline set, frames come only from the archive. Otherwise they come from TDengine,
// and are copied into the archive if one is configured.
// The returned Store is the archive, or nil. The caller closes it.
func OpenSource(log logs.Log, cfg *config.Config, offline bool) (PayloadSource, *framestore.Store, error) {
	var archive *framestore.Store
	if cfg.Archive != "" {
		var err error
		archive, err = framestore.Open(log, cfg.Archive)
		if err != nil {
			return nil, nil, err
		}
	}
	if offline {
		if archive == nil {
			return nil, nil, ErrNoArchive
		}
		return archive, archive, nil
	}
	remote := tdengine.NewClient(log, cfg.TDengine)
	if archive == nil {
		return remote, nil, nil
	}
	return &ArchivingSource{Remote: remote, Archive: archive}, archive, nil
}
