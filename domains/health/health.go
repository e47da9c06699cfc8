package health

import (
	"context"
	"time"
)

type EntityType string

const (
	EntityRemoteStore EntityType = "remote_store"
	EntityValkey      EntityType = "valkey"
	EntitySyncPool    EntityType = "sync_pool"
)

type Status string

const (
	StatusOk      Status = "OK"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

type HealthRecord struct {
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Status      Status     `json:"status"`
	LastMessage string     `json:"last_message"`
	LastChecked time.Time  `json:"last_checked"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

type IHealthUsecase interface {
	CheckAll(ctx context.Context) ([]HealthRecord, error)
	GetStatus(ctx context.Context) ([]HealthRecord, error)
	GetEntityStatus(ctx context.Context, entityType EntityType, entityID string) (HealthRecord, error)
	StartPeriodicChecks(ctx context.Context)
}
