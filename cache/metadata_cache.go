package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"syncthat/model"

	"github.com/redis/go-redis/v9"
)

// metadataTTL is how long probed URL metadata stays valid. Upstream pages
// can change titles or go away, so the cache is a probe accelerator, not a
// source of truth.
const metadataTTL = 24 * time.Hour

// SongMetadata is the cached result of a metadata probe for one URL.
type SongMetadata struct {
	Key               string         `json:"key"`
	Title             string         `json:"title"`
	DurationInSeconds int            `json:"durationInSeconds"`
	SongInfo          model.SongInfo `json:"songInfo"`
}

// MetadataCache caches yt-dlp probe results by source URL so re-queueing a
// known URL skips the subprocess round trip.
type MetadataCache struct {
	rdb *redis.Client
}

// NewMetadataCache creates a metadata cache on the global Redis client.
// Returns nil when Redis is not connected; a nil cache is safe to use and
// always misses.
func NewMetadataCache() *MetadataCache {
	if RedisClient == nil {
		return nil
	}
	return &MetadataCache{rdb: RedisClient}
}

// Get looks up cached metadata for url. A miss returns (nil, nil).
func (c *MetadataCache) Get(ctx context.Context, url string) (*SongMetadata, error) {
	if c == nil {
		return nil, nil
	}

	data, err := c.rdb.Get(ctx, metadataKey(url)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata cache: %w", err)
	}

	var meta SongMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode cached metadata: %w", err)
	}
	return &meta, nil
}

// Set stores probed metadata for url.
func (c *MetadataCache) Set(ctx context.Context, url string, meta *SongMetadata) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := c.rdb.Set(ctx, metadataKey(url), data, metadataTTL).Err(); err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	return nil
}

func metadataKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "resolver:url:" + hex.EncodeToString(sum[:])
}
