package guild

import (
	"context"
	"time"
)

const (
	Collection    = "guild_settings"
	DefaultPrefix = "!"
)

// GuildSettings is stored with the guild id as document id.
type GuildSettings struct {
	GuildID        string    `json:"guild_id" bson:"_id"`
	Prefix         string    `json:"prefix" bson:"prefix"`
	LogChannelID   *string   `json:"log_channel_id,omitempty" bson:"log_channel_id"`
	MuteRoleID     *string   `json:"mute_role_id,omitempty" bson:"mute_role_id"`
	AutomodEnabled bool      `json:"automod_enabled" bson:"automod_enabled"`
	WarnThreshold  *int      `json:"warn_threshold,omitempty" bson:"warn_threshold"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// Defaults returns the settings of a guild that never changed anything.
func Defaults(guildID string) GuildSettings {
	return GuildSettings{GuildID: guildID, Prefix: DefaultPrefix}
}

// UpdateSettingsRequest is a patch: nil fields are left alone. An empty
// LogChannelID or MuteRoleID unsets it.
type UpdateSettingsRequest struct {
	Prefix         *string `json:"prefix"`
	LogChannelID   *string `json:"log_channel_id"`
	MuteRoleID     *string `json:"mute_role_id"`
	AutomodEnabled *bool   `json:"automod_enabled"`
	WarnThreshold  *int    `json:"warn_threshold"`
}

type IGuildUsecase interface {
	Get(ctx context.Context, guildID string) (GuildSettings, error)
	Update(ctx context.Context, guildID string, req UpdateSettingsRequest) (GuildSettings, error)
	Reset(ctx context.Context, guildID string) error
}
