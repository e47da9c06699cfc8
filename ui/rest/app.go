package rest

import (
	"github.com/AzielCF/az-guard/core/config"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	"github.com/gofiber/fiber/v2"
)

type App struct {
	Store domainCollection.IDocumentStore
}

func InitRestApp(app fiber.Router, store domainCollection.IDocumentStore) App {
	rest := App{Store: store}
	app.Get("/app/version", rest.GetVersion)
	app.Get("/app/settings", rest.GetSettings)

	return rest
}

func (handler *App) GetVersion(c *fiber.Ctx) error {
	version, env := "", ""
	if config.Global != nil {
		version, env = config.Global.App.Version, config.Global.App.Environment
	}
	return c.JSON(fiber.Map{
		"version":     version,
		"environment": env,
		"store":       handler.Store.Kind(),
	})
}

func (handler *App) GetSettings(c *fiber.Ctx) error {
	return success(c, "Settings retrieved", config.GetAllSettings())
}
