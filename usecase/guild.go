package usecase

import (
	"context"
	"fmt"
	"time"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	domainGuild "github.com/AzielCF/az-guard/domains/guild"
	"github.com/AzielCF/az-guard/infrastructure/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/AzielCF/az-guard/validations"
	"github.com/sirupsen/logrus"
)

type guildService struct {
	settings *collection.Typed[domainGuild.GuildSettings]
	now      func() time.Time
}

func NewGuildService(manager *collection.Manager) domainGuild.IGuildUsecase {
	return &guildService{
		settings: collection.NewTyped[domainGuild.GuildSettings](manager.Collection(domainGuild.Collection)),
		now:      time.Now,
	}
}

func (s *guildService) Get(ctx context.Context, guildID string) (domainGuild.GuildSettings, error) {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return domainGuild.GuildSettings{}, err
	}
	settings, found, err := s.settings.FindOne(ctx, docquery.Query{"_id": guildID})
	if err != nil {
		return domainGuild.GuildSettings{}, fmt.Errorf("failed to load guild settings: %w", err)
	}
	if !found {
		return domainGuild.Defaults(guildID), nil
	}
	if settings.Prefix == "" {
		settings.Prefix = domainGuild.DefaultPrefix
	}
	return settings, nil
}

func (s *guildService) Update(ctx context.Context, guildID string, req domainGuild.UpdateSettingsRequest) (domainGuild.GuildSettings, error) {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return domainGuild.GuildSettings{}, err
	}
	if err := validations.ValidateUpdateGuildSettings(ctx, req); err != nil {
		return domainGuild.GuildSettings{}, err
	}

	set := map[string]any{"updated_at": s.now().UTC()}
	if req.Prefix != nil {
		set["prefix"] = *req.Prefix
	}
	if req.LogChannelID != nil {
		set["log_channel_id"] = optional(*req.LogChannelID)
	}
	if req.MuteRoleID != nil {
		set["mute_role_id"] = optional(*req.MuteRoleID)
	}
	if req.AutomodEnabled != nil {
		set["automod_enabled"] = *req.AutomodEnabled
	}
	if req.WarnThreshold != nil {
		set["warn_threshold"] = *req.WarnThreshold
	}

	// Make sure a stored document exists first, so the cache mirror of the
	// $set below lands on a full record.
	if err := s.ensure(ctx, guildID); err != nil {
		return domainGuild.GuildSettings{}, err
	}
	_, err := s.settings.UpdateOne(ctx, docquery.Query{"_id": guildID}, docquery.Update{"$set": set},
		domainCollection.UpdateOptions{Upsert: true})
	if err != nil {
		return domainGuild.GuildSettings{}, fmt.Errorf("failed to update guild settings: %w", err)
	}
	logrus.Infof("[GUILD] Settings updated for %s", guildID)

	// Read from the store: the cache copy is mirrored in the background.
	docs, err := s.settings.Find(ctx, docquery.Query{"_id": guildID}, domainCollection.FindOptions{Limit: 1})
	if err != nil {
		return domainGuild.GuildSettings{}, fmt.Errorf("failed to reload guild settings: %w", err)
	}
	if len(docs) == 0 {
		return domainGuild.Defaults(guildID), nil
	}
	return docs[0], nil
}

func (s *guildService) ensure(ctx context.Context, guildID string) error {
	n, err := s.settings.CountDocuments(ctx, docquery.Query{"_id": guildID})
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}
	if n > 0 {
		return nil
	}
	defaults := domainGuild.Defaults(guildID)
	defaults.UpdatedAt = s.now().UTC()
	if _, err := s.settings.InsertOne(ctx, defaults); err != nil {
		// Lost a race with another writer; the upsert below still applies.
		logrus.WithError(err).Debugf("[GUILD] Default settings insert for %s skipped", guildID)
	}
	return nil
}

func (s *guildService) Reset(ctx context.Context, guildID string) error {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return err
	}
	if _, err := s.settings.DeleteOne(ctx, docquery.Query{"_id": guildID}); err != nil {
		return fmt.Errorf("failed to reset guild settings: %w", err)
	}
	logrus.Infof("[GUILD] Settings reset for %s", guildID)
	return nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
