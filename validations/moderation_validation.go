package validations

import (
	"context"

	domainModeration "github.com/AzielCF/az-guard/domains/moderation"
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func actions() []any {
	out := make([]any, len(domainModeration.Actions))
	for i, a := range domainModeration.Actions {
		out[i] = a
	}
	return out
}

func ValidateWarn(ctx context.Context, request domainModeration.WarnRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.UserID, validation.Required, validation.Match(snowflake)),
		validation.Field(&request.ModeratorID, validation.Required, validation.Match(snowflake)),
		validation.Field(&request.Reason, validation.Length(0, 512)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateRecordCase(ctx context.Context, request domainModeration.RecordRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.UserID, validation.Required, validation.Match(snowflake)),
		validation.Field(&request.ModeratorID, validation.Required, validation.Match(snowflake)),
		validation.Field(&request.Action, validation.Required, validation.In(actions()...)),
		validation.Field(&request.Reason, validation.Length(0, 512)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
