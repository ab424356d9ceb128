package resolver

import (
	"context"

	"syncthat/model"
)

// Update is one progress report for a resolving song. Updates are
// delivered until the subscription is cancelled; a terminal failure is
// reported as Progress == model.ProgressFailed.
type Update struct {
	Key               string
	Title             string
	DurationInSeconds int
	Progress          float64
	Ready             bool
	WaveformGenerated bool
}

// Result is the immediate outcome of a resolve: metadata is known, the
// download may or may not have finished yet.
type Result struct {
	Key               string
	Title             string
	DurationInSeconds int
	Progress          float64
	Ready             bool
	WaveformGenerated bool
	SongInfo          model.SongInfo
}

// CancelFunc detaches a progress subscription. Safe to call more than once.
type CancelFunc func()

// Resolver turns a URL into a playable, duration-known audio asset and
// reports acquisition progress. Resolve blocks for the metadata probe only;
// the download itself runs in the background and reports through onProgress.
type Resolver interface {
	Resolve(ctx context.Context, url string, onProgress func(Update)) (*Result, CancelFunc, error)

	// Status returns the latest known state for a key, or nil when the
	// resolver is not tracking it (anymore).
	Status(key string) *Update
}
