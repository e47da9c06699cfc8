package rest

import (
	"github.com/AzielCF/az-guard/domains/health"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Health struct {
	Service health.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service health.IHealthUsecase) Health {
	handler := Health{Service: service}

	app.Get("/health/status", handler.GetStatus)
	app.Post("/health/check-all", handler.CheckAll)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	records, err := h.Service.GetStatus(c.UserContext())
	utils.PanicIfNeeded(err)

	return success(c, "Health status retrieved", records)
}

func (h *Health) CheckAll(c *fiber.Ctx) error {
	records, err := h.Service.CheckAll(c.UserContext())
	utils.PanicIfNeeded(err)

	return success(c, "Health checks completed", records)
}
