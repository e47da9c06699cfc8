package rest

import (
	"github.com/AzielCF/az-guard/infrastructure/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// InitRestMetrics mounts the Prometheus scrape endpoint.
func InitRestMetrics(app fiber.Router, collector *metrics.Collector) {
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
}
