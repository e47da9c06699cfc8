package rest

import (
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

func parseBody(c *fiber.Ctx, out any) {
	if err := c.BodyParser(out); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body: " + err.Error()))
	}
}

func success(c *fiber.Ctx, message string, results any) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}
