package model

import "time"

// ProgressFailed is the sentinel download progress for a terminally
// failed resolution.
const ProgressFailed = -1

// SongInfo is display metadata extracted by the resolver. It is opaque
// to the room engine and passed through to clients as-is.
type SongInfo struct {
	Title      string `json:"title"`
	Uploader   string `json:"uploader,omitempty"`
	WebpageURL string `json:"webpageUrl,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	Extractor  string `json:"extractor,omitempty"`
}

// Song is one queued or playing track. The same *Song instance moves from
// the queue into the current slot and on into the played list, so progress
// updates and votes stay visible everywhere without copying.
type Song struct {
	// Key is extractor + "-" + id, the dedup identity across queue,
	// current and played within a room.
	Key               string `json:"key"`
	Title             string `json:"title"`
	DurationInSeconds int    `json:"durationInSeconds"`

	// DownloadProgress is 0..100, or ProgressFailed after a terminal failure.
	DownloadProgress  float64 `json:"downloadProgress"`
	Ready             bool    `json:"ready"`
	WaveformGenerated bool    `json:"waveformGenerated"`

	SongInfo SongInfo `json:"songInfo"`

	// RequestedBy is the public id of the requesting user.
	RequestedBy string `json:"requestedBy,omitempty"`
	RequestedAt int64  `json:"requestedAt,omitempty"`
	PlayedAt    int64  `json:"playedAt,omitempty"`
	StoppedAt   int64  `json:"stoppedAt,omitempty"`

	// LikedDisliked maps public user ids to their vote. Retracted votes
	// are removed from the map.
	LikedDisliked map[string]bool `json:"likedDisliked"`
}

// NewSong creates a queued song owned by the given public user id.
func NewSong(key, title string, ready bool, durationInSeconds int, waveformGenerated bool, info SongInfo, requestedBy string) *Song {
	progress := 0.0
	if ready {
		progress = 100
	}
	return &Song{
		Key:               key,
		Title:             title,
		DurationInSeconds: durationInSeconds,
		DownloadProgress:  progress,
		Ready:             ready,
		WaveformGenerated: waveformGenerated,
		SongInfo:          info,
		RequestedBy:       requestedBy,
		RequestedAt:       time.Now().UnixMilli(),
		LikedDisliked:     make(map[string]bool),
	}
}

// CurrentSong wraps the playing song with the timeline reference point.
// Live position is LastCurrentSeconds + (now - EventTimestamp).
type CurrentSong struct {
	Song    *Song `json:"song"`
	Playing bool  `json:"playing"`

	// LastCurrentSeconds is the elapsed position at EventTimestamp.
	LastCurrentSeconds float64 `json:"lastCurrentSeconds"`
	// EventTimestamp is the unix-ms server clock reference point.
	EventTimestamp int64 `json:"eventTimestamp"`
}

// StartBufferMillis is added to the event timestamp when a song starts so
// the broadcast can propagate before clients begin playback.
const StartBufferMillis = 1000

// NewCurrentSong promotes a queued song into the current slot, starting at
// position zero one propagation buffer into the future.
func NewCurrentSong(song *Song) *CurrentSong {
	return &CurrentSong{
		Song:           song,
		Playing:        true,
		EventTimestamp: time.Now().UnixMilli() + StartBufferMillis,
	}
}
