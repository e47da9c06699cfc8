package rest

import (
	domainGuild "github.com/AzielCF/az-guard/domains/guild"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Guild struct {
	Service domainGuild.IGuildUsecase
}

func InitRestGuild(app fiber.Router, service domainGuild.IGuildUsecase) Guild {
	rest := Guild{Service: service}
	app.Get("/guilds/:guild/settings", rest.GetSettings)
	app.Put("/guilds/:guild/settings", rest.UpdateSettings)
	app.Delete("/guilds/:guild/settings", rest.ResetSettings)

	return rest
}

func (handler *Guild) GetSettings(c *fiber.Ctx) error {
	settings, err := handler.Service.Get(c.UserContext(), c.Params("guild"))
	utils.PanicIfNeeded(err)

	return success(c, "Guild settings retrieved", settings)
}

func (handler *Guild) UpdateSettings(c *fiber.Ctx) error {
	var request domainGuild.UpdateSettingsRequest
	parseBody(c, &request)

	settings, err := handler.Service.Update(c.UserContext(), c.Params("guild"), request)
	utils.PanicIfNeeded(err)

	return success(c, "Guild settings updated", settings)
}

func (handler *Guild) ResetSettings(c *fiber.Ctx) error {
	err := handler.Service.Reset(c.UserContext(), c.Params("guild"))
	utils.PanicIfNeeded(err)

	return success(c, "Guild settings reset to defaults", nil)
}
