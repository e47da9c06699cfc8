package middleware

import (
	"errors"
	"fmt"

	pkgError "github.com/AzielCF/az-guard/pkg/error"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Recovery turns panics raised by utils.PanicIfNeeded into JSON responses.
// Errors carrying a pkgError.GenericError, even wrapped, keep their status.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			res := utils.ResponseData{
				Status:  fiber.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", rec),
			}

			var generic pkgError.GenericError
			if err, ok := rec.(error); ok && errors.As(err, &generic) {
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				res.Message = generic.Error()
			}
			if res.Status >= fiber.StatusInternalServerError {
				logrus.Errorf("[REST] Panic recovered in %s %s: %v", ctx.Method(), ctx.Path(), rec)
			} else {
				logrus.Debugf("[REST] %s %s: %s", ctx.Method(), ctx.Path(), res.Message)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
