package moderation

import (
	"context"
	"time"
)

const Collection = "mod_cases"

type Action string

const (
	ActionWarn  Action = "warn"
	ActionMute  Action = "mute"
	ActionKick  Action = "kick"
	ActionBan   Action = "ban"
	ActionUnban Action = "unban"
	ActionNote  Action = "note"
)

var Actions = []Action{ActionWarn, ActionMute, ActionKick, ActionBan, ActionUnban, ActionNote}

type Case struct {
	CaseID      string    `json:"case_id" bson:"_id"`
	GuildID     string    `json:"guild_id" bson:"guild_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	ModeratorID string    `json:"moderator_id" bson:"moderator_id"`
	Action      Action    `json:"action" bson:"action"`
	Reason      string    `json:"reason" bson:"reason"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	Active      bool      `json:"active" bson:"active"`
}

type WarnRequest struct {
	UserID      string `json:"user_id"`
	ModeratorID string `json:"moderator_id"`
	Reason      string `json:"reason"`
}

type RecordRequest struct {
	UserID      string `json:"user_id"`
	ModeratorID string `json:"moderator_id"`
	Action      Action `json:"action"`
	Reason      string `json:"reason"`
}

type WarnResult struct {
	Case             Case  `json:"case"`
	ActiveWarnings   int64 `json:"active_warnings"`
	Threshold        int   `json:"threshold"`
	ThresholdReached bool  `json:"threshold_reached"`
}

type IModerationUsecase interface {
	Warn(ctx context.Context, guildID string, req WarnRequest) (WarnResult, error)
	Record(ctx context.Context, guildID string, req RecordRequest) (Case, error)
	GetCase(ctx context.Context, guildID, caseID string) (Case, error)
	ListCases(ctx context.Context, guildID, userID string) ([]Case, error)
	ClearWarnings(ctx context.Context, guildID, userID string) (int, error)
	DeleteCase(ctx context.Context, guildID, caseID string) error
}
