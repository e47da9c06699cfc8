package validations

import (
	"context"

	domainEconomy "github.com/AzielCF/az-guard/domains/economy"
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MaxAmount = int64(1_000_000_000_000)

func ValidateAmount(ctx context.Context, request domainEconomy.AmountRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Amount, validation.Required, validation.Min(int64(1)), validation.Max(MaxAmount)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateTransfer(ctx context.Context, request domainEconomy.TransferRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.FromUserID, validation.Required, validation.Match(snowflake)),
		validation.Field(&request.ToUserID, validation.Required, validation.Match(snowflake),
			validation.NotIn(request.FromUserID).Error("cannot transfer to yourself")),
		validation.Field(&request.Amount, validation.Required, validation.Min(int64(1)), validation.Max(MaxAmount)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
