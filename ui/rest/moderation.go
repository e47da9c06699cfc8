package rest

import (
	domainModeration "github.com/AzielCF/az-guard/domains/moderation"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Moderation struct {
	Service domainModeration.IModerationUsecase
}

func InitRestModeration(app fiber.Router, service domainModeration.IModerationUsecase) Moderation {
	rest := Moderation{Service: service}
	app.Post("/guilds/:guild/moderation/warn", rest.Warn)
	app.Post("/guilds/:guild/moderation/cases", rest.RecordCase)
	app.Get("/guilds/:guild/moderation/cases/:case", rest.GetCase)
	app.Delete("/guilds/:guild/moderation/cases/:case", rest.DeleteCase)
	app.Get("/guilds/:guild/moderation/users/:user/cases", rest.ListCases)
	app.Delete("/guilds/:guild/moderation/users/:user/warnings", rest.ClearWarnings)

	return rest
}

func (handler *Moderation) Warn(c *fiber.Ctx) error {
	var request domainModeration.WarnRequest
	parseBody(c, &request)

	result, err := handler.Service.Warn(c.UserContext(), c.Params("guild"), request)
	utils.PanicIfNeeded(err)

	return success(c, "Warning recorded", result)
}

func (handler *Moderation) RecordCase(c *fiber.Ctx) error {
	var request domainModeration.RecordRequest
	parseBody(c, &request)

	result, err := handler.Service.Record(c.UserContext(), c.Params("guild"), request)
	utils.PanicIfNeeded(err)

	return success(c, "Case recorded", result)
}

func (handler *Moderation) GetCase(c *fiber.Ctx) error {
	result, err := handler.Service.GetCase(c.UserContext(), c.Params("guild"), c.Params("case"))
	utils.PanicIfNeeded(err)

	return success(c, "Case retrieved", result)
}

func (handler *Moderation) DeleteCase(c *fiber.Ctx) error {
	err := handler.Service.DeleteCase(c.UserContext(), c.Params("guild"), c.Params("case"))
	utils.PanicIfNeeded(err)

	return success(c, "Case deleted", nil)
}

func (handler *Moderation) ListCases(c *fiber.Ctx) error {
	result, err := handler.Service.ListCases(c.UserContext(), c.Params("guild"), c.Params("user"))
	utils.PanicIfNeeded(err)

	return success(c, "Cases retrieved", result)
}

func (handler *Moderation) ClearWarnings(c *fiber.Ctx) error {
	cleared, err := handler.Service.ClearWarnings(c.UserContext(), c.Params("guild"), c.Params("user"))
	utils.PanicIfNeeded(err)

	return success(c, "Warnings cleared", fiber.Map{"cleared": cleared})
}
