package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Validate checks the loaded values; the first failing section is reported.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		err  error
	}{
		{"app", validation.ValidateStruct(&c.App,
			validation.Field(&c.App.Port, validation.Required, is.Port),
		)},
		{"db", validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Driver, validation.Required, validation.In("mongo", "sqlite", "postgres", "memory")),
			validation.Field(&c.Database.MongoURI, validation.When(c.Database.Driver == "mongo", validation.Required)),
			validation.Field(&c.Database.MongoDatabase, validation.When(c.Database.Driver == "mongo", validation.Required)),
			validation.Field(&c.Database.Name, validation.When(c.Database.Driver == "sqlite" || c.Database.Driver == "postgres", validation.Required)),
		)},
		{"valkey", validation.ValidateStruct(&c.Valkey,
			validation.Field(&c.Valkey.Address, validation.When(c.Valkey.Enabled, validation.Required)),
			validation.Field(&c.Valkey.DB, validation.Min(0)),
		)},
		{"cache", validation.ValidateStruct(&c.Cache,
			validation.Field(&c.Cache.TTL, validation.When(c.Cache.Enabled, validation.Required, validation.Min(time.Millisecond))),
			validation.Field(&c.Cache.MaxSize, validation.Min(ByteSize(0))),
		)},
		{"sync_pool", validation.ValidateStruct(&c.SyncPool,
			validation.Field(&c.SyncPool.Workers, validation.Required, validation.Min(1)),
			validation.Field(&c.SyncPool.QueueSize, validation.Required, validation.Min(1)),
		)},
		{"economy", validation.ValidateStruct(&c.Economy,
			validation.Field(&c.Economy.StartingBalance, validation.Min(int64(0))),
			validation.Field(&c.Economy.DailyReward, validation.Min(int64(0))),
			validation.Field(&c.Economy.DailyCooldown, validation.Required),
		)},
		{"moderation", validation.ValidateStruct(&c.Moderation,
			validation.Field(&c.Moderation.WarnThreshold, validation.Min(0)),
			validation.Field(&c.Moderation.CasePageSize, validation.Required, validation.Min(1), validation.Max(100)),
		)},
	}
	for _, s := range sections {
		if s.err != nil {
			return fmt.Errorf("invalid %s config: %w", s.name, s.err)
		}
	}
	return nil
}
