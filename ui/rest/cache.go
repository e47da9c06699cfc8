package rest

import (
	domainCache "github.com/AzielCF/az-guard/domains/cache"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/stats", rest.GetGlobalStats)
	app.Post("/cache/clear", rest.ClearGlobalCache)
	app.Get("/cache/settings", rest.GetSettings)
	app.Get("/collections/:name/cache/stats", rest.GetCollectionStats)
	app.Post("/collections/:name/cache/clear", rest.ClearCollectionCache)

	return rest
}

func (handler *Cache) GetGlobalStats(c *fiber.Ctx) error {
	stats, err := handler.Service.GetGlobalStats(c.UserContext())
	utils.PanicIfNeeded(err)

	return success(c, "Global cache stats retrieved", stats)
}

func (handler *Cache) ClearGlobalCache(c *fiber.Ctx) error {
	err := handler.Service.ClearGlobalCache(c.UserContext())
	utils.PanicIfNeeded(err)

	return success(c, "Global cache cleared successfully", nil)
}

func (handler *Cache) GetCollectionStats(c *fiber.Ctx) error {
	stats, err := handler.Service.GetCollectionStats(c.UserContext(), c.Params("name"))
	utils.PanicIfNeeded(err)

	return success(c, "Collection cache stats retrieved", stats)
}

func (handler *Cache) ClearCollectionCache(c *fiber.Ctx) error {
	err := handler.Service.ClearCollectionCache(c.UserContext(), c.Params("name"))
	utils.PanicIfNeeded(err)

	return success(c, "Collection cache cleared successfully", nil)
}

func (handler *Cache) GetSettings(c *fiber.Ctx) error {
	settings, err := handler.Service.GetSettings(c.UserContext())
	utils.PanicIfNeeded(err)

	return success(c, "Cache settings retrieved", settings)
}
