package validations

import (
	"context"
	"regexp"

	domainGuild "github.com/AzielCF/az-guard/domains/guild"
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var snowflake = regexp.MustCompile(`^[0-9A-Za-z_-]{1,64}$`)

// ValidateID checks a guild, user or channel id taken from a path.
func ValidateID(name, id string) error {
	err := validation.Validate(id, validation.Required, validation.Match(snowflake))
	if err != nil {
		return pkgError.ValidationError(name + ": " + err.Error())
	}
	return nil
}

func ValidateUpdateGuildSettings(ctx context.Context, request domainGuild.UpdateSettingsRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Prefix, validation.NilOrNotEmpty, validation.Length(1, 5)),
		validation.Field(&request.LogChannelID, validation.When(request.LogChannelID != nil && *request.LogChannelID != "", validation.Match(snowflake))),
		validation.Field(&request.MuteRoleID, validation.When(request.MuteRoleID != nil && *request.MuteRoleID != "", validation.Match(snowflake))),
		validation.Field(&request.WarnThreshold, validation.Min(0), validation.Max(50)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if request == (domainGuild.UpdateSettingsRequest{}) {
		return pkgError.ValidationError("at least one setting is required")
	}
	return nil
}
