package rest

import (
	"github.com/AzielCF/az-guard/pkg/syncpool"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// InitRestSyncPool exposes the cache sync pool statistics.
func InitRestSyncPool(app fiber.Router, pool *syncpool.Pool) {
	app.Get("/sync-pool/stats", func(c *fiber.Ctx) error {
		if pool == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
				Status:  fiber.StatusServiceUnavailable,
				Code:    "SERVICE_UNAVAILABLE",
				Message: "Sync pool not initialized",
			})
		}
		return success(c, "Sync pool stats retrieved", pool.GetStats())
	})
}
