package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-guard/core/config"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	domainGuild "github.com/AzielCF/az-guard/domains/guild"
	domainModeration "github.com/AzielCF/az-guard/domains/moderation"
	"github.com/AzielCF/az-guard/infrastructure/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	"github.com/AzielCF/az-guard/validations"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type moderationService struct {
	cases  *collection.Typed[domainModeration.Case]
	guilds domainGuild.IGuildUsecase
	cfg    config.ModerationConfig
	now    func() time.Time
}

func NewModerationService(manager *collection.Manager, guilds domainGuild.IGuildUsecase, cfg config.ModerationConfig) domainModeration.IModerationUsecase {
	return &moderationService{
		cases:  collection.NewTyped[domainModeration.Case](manager.Collection(domainModeration.Collection)),
		guilds: guilds,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (s *moderationService) record(ctx context.Context, guildID string, req domainModeration.RecordRequest) (domainModeration.Case, error) {
	c := domainModeration.Case{
		CaseID:      uuid.NewString(),
		GuildID:     guildID,
		UserID:      req.UserID,
		ModeratorID: req.ModeratorID,
		Action:      req.Action,
		Reason:      req.Reason,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
		Active:      true,
	}
	if _, err := s.cases.InsertOne(ctx, c); err != nil {
		return domainModeration.Case{}, fmt.Errorf("failed to record case: %w", err)
	}
	logrus.Infof("[MODERATION] %s case %s for %s in %s by %s", c.Action, c.CaseID, c.UserID, guildID, c.ModeratorID)
	return c, nil
}

func (s *moderationService) Record(ctx context.Context, guildID string, req domainModeration.RecordRequest) (domainModeration.Case, error) {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return domainModeration.Case{}, err
	}
	if err := validations.ValidateRecordCase(ctx, req); err != nil {
		return domainModeration.Case{}, err
	}
	if req.Action == domainModeration.ActionWarn {
		res, err := s.Warn(ctx, guildID, domainModeration.WarnRequest{UserID: req.UserID, ModeratorID: req.ModeratorID, Reason: req.Reason})
		return res.Case, err
	}
	return s.record(ctx, guildID, req)
}

func (s *moderationService) Warn(ctx context.Context, guildID string, req domainModeration.WarnRequest) (domainModeration.WarnResult, error) {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return domainModeration.WarnResult{}, err
	}
	if err := validations.ValidateWarn(ctx, req); err != nil {
		return domainModeration.WarnResult{}, err
	}

	c, err := s.record(ctx, guildID, domainModeration.RecordRequest{
		UserID:      req.UserID,
		ModeratorID: req.ModeratorID,
		Action:      domainModeration.ActionWarn,
		Reason:      req.Reason,
	})
	if err != nil {
		return domainModeration.WarnResult{}, err
	}

	active, err := s.cases.CountDocuments(ctx, activeWarnings(guildID, req.UserID))
	if err != nil {
		return domainModeration.WarnResult{}, fmt.Errorf("failed to count warnings: %w", err)
	}
	threshold := s.cfg.WarnThreshold
	if settings, err := s.guilds.Get(ctx, guildID); err == nil && settings.WarnThreshold != nil {
		threshold = *settings.WarnThreshold
	} else if err != nil {
		logrus.WithError(err).Warnf("[MODERATION] Using default warn threshold for %s", guildID)
	}

	res := domainModeration.WarnResult{
		Case:             c,
		ActiveWarnings:   active,
		Threshold:        threshold,
		ThresholdReached: threshold > 0 && active >= int64(threshold),
	}
	if res.ThresholdReached {
		logrus.Warnf("[MODERATION] %s reached %d active warnings in %s", req.UserID, active, guildID)
	}
	return res, nil
}

func (s *moderationService) GetCase(ctx context.Context, guildID, caseID string) (domainModeration.Case, error) {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return domainModeration.Case{}, err
	}
	if err := validations.ValidateID("case_id", caseID); err != nil {
		return domainModeration.Case{}, err
	}
	c, found, err := s.cases.FindOne(ctx, docquery.Query{"_id": caseID, "guild_id": guildID})
	if err != nil {
		return domainModeration.Case{}, fmt.Errorf("failed to load case: %w", err)
	}
	if !found {
		return domainModeration.Case{}, pkgError.NotFoundError(fmt.Sprintf("case %s not found", caseID))
	}
	return c, nil
}

// ListCases returns the member's newest cases, up to the configured page
// size.
func (s *moderationService) ListCases(ctx context.Context, guildID, userID string) ([]domainModeration.Case, error) {
	if err := validateMember(guildID, userID); err != nil {
		return nil, err
	}
	cases, err := s.cases.Find(ctx, docquery.Query{"guild_id": guildID, "user_id": userID}, domainCollection.FindOptions{
		Limit: int64(s.cfg.CasePageSize),
		Sort:  []docquery.SortField{{Field: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

// ClearWarnings deactivates the member's active warnings one by one and
// returns how many it changed.
func (s *moderationService) ClearWarnings(ctx context.Context, guildID, userID string) (int, error) {
	if err := validateMember(guildID, userID); err != nil {
		return 0, err
	}
	warnings, err := s.cases.Find(ctx, activeWarnings(guildID, userID), domainCollection.FindOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to load warnings: %w", err)
	}
	cleared := 0
	for _, w := range warnings {
		res, err := s.cases.UpdateOne(ctx, docquery.Query{"_id": w.CaseID, "active": true},
			docquery.Update{"$set": map[string]any{"active": false}}, domainCollection.UpdateOptions{})
		if err != nil {
			return cleared, fmt.Errorf("failed to clear warning %s: %w", w.CaseID, err)
		}
		cleared += int(res.Modified)
	}
	logrus.Infof("[MODERATION] Cleared %d warnings for %s in %s", cleared, userID, guildID)
	return cleared, nil
}

func (s *moderationService) DeleteCase(ctx context.Context, guildID, caseID string) error {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return err
	}
	if err := validations.ValidateID("case_id", caseID); err != nil {
		return err
	}
	n, err := s.cases.DeleteOne(ctx, docquery.Query{"_id": caseID, "guild_id": guildID})
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	if n == 0 {
		return pkgError.NotFoundError(fmt.Sprintf("case %s not found", caseID))
	}
	return nil
}

func activeWarnings(guildID, userID string) docquery.Query {
	return docquery.Query{
		"guild_id": guildID,
		"user_id":  userID,
		"action":   string(domainModeration.ActionWarn),
		"active":   true,
	}
}
