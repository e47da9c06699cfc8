package usecase

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-guard/core/config"
	domainCache "github.com/AzielCF/az-guard/domains/cache"
	"github.com/AzielCF/az-guard/infrastructure/collection"
	"github.com/AzielCF/az-guard/pkg/doccache"
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

type cacheService struct {
	manager *collection.Manager
	cfg     config.CacheConfig
}

func NewCacheService(manager *collection.Manager, cfg config.CacheConfig) domainCache.ICacheUsecase {
	return &cacheService{manager: manager, cfg: cfg}
}

func (s *cacheService) GetSettings(ctx context.Context) (domainCache.CacheSettings, error) {
	return domainCache.CacheSettings{
		Enabled:         s.cfg.Enabled,
		TTL:             s.cfg.TTL.String(),
		CleanupInterval: s.cfg.CleanupInterval.String(),
		MaxSizeBytes:    int64(s.cfg.MaxSize),
		HumanMaxSize:    s.cfg.MaxSize.String(),
	}, nil
}

func (s *cacheService) GetGlobalStats(ctx context.Context) (domainCache.GlobalCacheStats, error) {
	out := domainCache.GlobalCacheStats{Collections: []domainCache.CacheStats{}}
	for _, c := range s.manager.Collections() {
		st := toCacheStats(c.Stats())
		out.Entries += st.Entries
		out.TotalSize += st.TotalSize
		out.Hits += st.Hits
		out.Misses += st.Misses
		out.Evictions += st.Evictions
		out.Sweeps += st.Sweeps
		out.Collections = append(out.Collections, st)
	}
	out.HumanSize = humanize.IBytes(uint64(out.TotalSize))
	return out, nil
}

func (s *cacheService) ClearGlobalCache(ctx context.Context) error {
	for _, c := range s.manager.Collections() {
		c.ClearCache()
	}
	logrus.Info("[CACHE] All collection caches cleared")
	return nil
}

func (s *cacheService) GetCollectionStats(ctx context.Context, name string) (domainCache.CacheStats, error) {
	c, ok := s.manager.Lookup(name)
	if !ok {
		return domainCache.CacheStats{}, pkgError.NotFoundError(fmt.Sprintf("collection %s has no cache", name))
	}
	return toCacheStats(c.Stats()), nil
}

func (s *cacheService) ClearCollectionCache(ctx context.Context, name string) error {
	c, ok := s.manager.Lookup(name)
	if !ok {
		return pkgError.NotFoundError(fmt.Sprintf("collection %s has no cache", name))
	}
	c.ClearCache()
	logrus.Infof("[CACHE] Cache cleared for %s", name)
	return nil
}

func toCacheStats(st doccache.Stats) domainCache.CacheStats {
	out := domainCache.CacheStats{
		Collection: st.Name,
		Entries:    st.Entries,
		TotalSize:  st.Size,
		HumanSize:  humanize.IBytes(uint64(st.Size)),
		Hits:       st.Hits,
		Misses:     st.Misses,
		Evictions:  st.Evictions,
		Sweeps:     st.Sweeps,
	}
	if !st.LastSweep.IsZero() {
		last := st.LastSweep
		out.LastSweep = &last
	}
	return out
}
