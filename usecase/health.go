package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AzielCF/az-guard/domains/health"
	"github.com/AzielCF/az-guard/pkg/syncpool"
	"github.com/sirupsen/logrus"
)

// Pinger is anything health can reach with a round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	healthCheckInterval = time.Minute
	healthPingTimeout   = 5 * time.Second
)

type healthService struct {
	store     Pinger
	storeKind string
	valkey    Pinger
	pool      *syncpool.Pool

	mu      sync.RWMutex
	records map[string]health.HealthRecord
	now     func() time.Time
}

// NewHealthService checks the remote store, the sync pool and, when valkey
// is not nil, the invalidation bus server.
func NewHealthService(store Pinger, storeKind string, valkey Pinger, pool *syncpool.Pool) health.IHealthUsecase {
	return &healthService{
		store:     store,
		storeKind: storeKind,
		valkey:    valkey,
		pool:      pool,
		records:   map[string]health.HealthRecord{},
		now:       time.Now,
	}
}

func recordKey(entityType health.EntityType, entityID string) string {
	return string(entityType) + "/" + entityID
}

func (s *healthService) GetStatus(ctx context.Context) ([]health.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]health.HealthRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return recordKey(records[i].EntityType, records[i].EntityID) < recordKey(records[j].EntityType, records[j].EntityID)
	})
	return records, nil
}

func (s *healthService) GetEntityStatus(ctx context.Context, entityType health.EntityType, entityID string) (health.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[recordKey(entityType, entityID)]; ok {
		return r, nil
	}
	return health.HealthRecord{EntityType: entityType, EntityID: entityID, Status: health.StatusUnknown}, nil
}

func (s *healthService) upsertStatus(r health.HealthRecord) health.HealthRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(r.EntityType, r.EntityID)
	r.LastChecked = s.now()
	if r.Status == health.StatusOk {
		checked := r.LastChecked
		r.LastSuccess = &checked
	} else if prev, ok := s.records[key]; ok {
		r.LastSuccess = prev.LastSuccess
	}
	s.records[key] = r
	return r
}

func (s *healthService) ping(ctx context.Context, entityType health.EntityType, entityID string, p Pinger) health.HealthRecord {
	record := health.HealthRecord{EntityType: entityType, EntityID: entityID, Status: health.StatusOk}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	start := s.now()
	if err := p.Ping(ctx); err != nil {
		record.Status = health.StatusError
		record.LastMessage = err.Error()
	} else {
		record.LastMessage = fmt.Sprintf("Ping OK in %v", s.now().Sub(start).Round(time.Millisecond))
	}
	return s.upsertStatus(record)
}

func (s *healthService) checkPool() health.HealthRecord {
	record := health.HealthRecord{EntityType: health.EntitySyncPool, EntityID: "cache-sync", Status: health.StatusOk}
	stats := s.pool.GetStats()
	saturated := 0
	for _, w := range stats.WorkerStats {
		if w.QueueDepth*10 >= stats.QueueSize*9 {
			saturated++
		}
	}
	switch {
	case s.pool.Stopped():
		record.Status = health.StatusError
		record.LastMessage = "Sync pool stopped"
	case saturated > 0:
		record.Status = health.StatusError
		record.LastMessage = fmt.Sprintf("%d of %d worker queues are nearly full", saturated, stats.NumWorkers)
	default:
		record.LastMessage = fmt.Sprintf("%d pending, %d dropped, %d errors", stats.Pending, stats.TotalDropped, stats.TotalErrors)
	}
	return s.upsertStatus(record)
}

func (s *healthService) CheckAll(ctx context.Context) ([]health.HealthRecord, error) {
	results := []health.HealthRecord{s.ping(ctx, health.EntityRemoteStore, s.storeKind, s.store)}
	if s.valkey != nil {
		results = append(results, s.ping(ctx, health.EntityValkey, "invalidation-bus", s.valkey))
	}
	if s.pool != nil {
		results = append(results, s.checkPool())
	}
	for _, r := range results {
		if r.Status != health.StatusOk {
			logrus.Warnf("[HEALTH] %s/%s: %s", r.EntityType, r.EntityID, r.LastMessage)
		}
	}
	return results, nil
}

func (s *healthService) StartPeriodicChecks(ctx context.Context) {
	logrus.Infof("[HEALTH] starting periodic health checks loop (interval: %v)", healthCheckInterval)
	ticker := time.NewTicker(healthCheckInterval)

	go func() {
		defer ticker.Stop()
		logrus.Info("[HEALTH] performing initial health check")
		s.CheckAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logrus.Debug("[HEALTH] performing scheduled health check")
				s.CheckAll(ctx)
			}
		}
	}()
}
