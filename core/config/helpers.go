package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
)

// ByteSize is a size in bytes that decodes from "1GiB", "512MB" or a plain
// number.
type ByteSize int64

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// GetAllSettings returns the tunables worth showing in admin views.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_debug":                 Global.App.Debug,
		"app_version":               Global.App.Version,
		"db_driver":                 Global.Database.Driver,
		"valkey_enabled":            Global.Valkey.Enabled,
		"cache_enabled":             Global.Cache.Enabled,
		"cache_ttl":                 Global.Cache.TTL.String(),
		"cache_cleanup_interval":    Global.Cache.CleanupInterval.String(),
		"cache_max_size":            Global.Cache.MaxSize.String(),
		"sync_pool_workers":         Global.SyncPool.Workers,
		"sync_pool_queue_size":      Global.SyncPool.QueueSize,
		"economy_daily_reward":      Global.Economy.DailyReward,
		"economy_daily_cooldown":    Global.Economy.DailyCooldown.String(),
		"moderation_warn_threshold": Global.Moderation.WarnThreshold,
	}
}

func byteSizeHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(ByteSize(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target || from.Kind() != reflect.String {
			return data, nil
		}
		n, err := humanize.ParseBytes(strings.TrimSpace(data.(string)))
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", data, err)
		}
		return ByteSize(n), nil
	}
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
