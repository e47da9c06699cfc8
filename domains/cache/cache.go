package cache

import (
	"context"
	"time"
)

type CacheStats struct {
	Collection string     `json:"collection,omitempty"`
	Entries    int        `json:"entries"`
	TotalSize  int64      `json:"total_size"`
	HumanSize  string     `json:"human_size"`
	Hits       int64      `json:"hits"`
	Misses     int64      `json:"misses"`
	Evictions  int64      `json:"evictions"`
	Sweeps     int64      `json:"sweeps"`
	LastSweep  *time.Time `json:"last_sweep,omitempty"`
}

type GlobalCacheStats struct {
	CacheStats
	Collections []CacheStats `json:"collections"`
}

type CacheSettings struct {
	Enabled         bool   `json:"enabled"`
	TTL             string `json:"ttl"`
	CleanupInterval string `json:"cleanup_interval"`
	MaxSizeBytes    int64  `json:"max_size_bytes"`
	HumanMaxSize    string `json:"human_max_size"`
}

type ICacheUsecase interface {
	GetGlobalStats(ctx context.Context) (GlobalCacheStats, error)
	ClearGlobalCache(ctx context.Context) error
	GetCollectionStats(ctx context.Context, collection string) (CacheStats, error)
	ClearCollectionCache(ctx context.Context, collection string) error

	GetSettings(ctx context.Context) (CacheSettings, error)
}
