package rest

import (
	"context"

	domainEconomy "github.com/AzielCF/az-guard/domains/economy"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Economy struct {
	Service domainEconomy.IEconomyUsecase
}

func InitRestEconomy(app fiber.Router, service domainEconomy.IEconomyUsecase) Economy {
	rest := Economy{Service: service}
	// Static segments first so they are not taken for a user id.
	app.Get("/guilds/:guild/economy/leaderboard", rest.Leaderboard)
	app.Post("/guilds/:guild/economy/transfer", rest.Transfer)
	app.Get("/guilds/:guild/economy/:user", rest.Balance)
	app.Post("/guilds/:guild/economy/:user/deposit", rest.amountHandler("Deposit completed", service.Deposit))
	app.Post("/guilds/:guild/economy/:user/withdraw", rest.amountHandler("Withdrawal completed", service.Withdraw))
	app.Post("/guilds/:guild/economy/:user/add", rest.amountHandler("Money added", service.AddMoney))
	app.Post("/guilds/:guild/economy/:user/remove", rest.amountHandler("Money removed", service.RemoveMoney))
	app.Post("/guilds/:guild/economy/:user/daily", rest.Daily)

	return rest
}

func (handler *Economy) Balance(c *fiber.Ctx) error {
	wallet, err := handler.Service.Balance(c.UserContext(), c.Params("guild"), c.Params("user"))
	utils.PanicIfNeeded(err)

	return success(c, "Wallet retrieved", wallet)
}

type amountFunc func(ctx context.Context, guildID, userID string, amount int64) (domainEconomy.Wallet, error)

func (handler *Economy) amountHandler(message string, fn amountFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var request domainEconomy.AmountRequest
		parseBody(c, &request)

		wallet, err := fn(c.UserContext(), c.Params("guild"), c.Params("user"), request.Amount)
		utils.PanicIfNeeded(err)

		return success(c, message, wallet)
	}
}

func (handler *Economy) Daily(c *fiber.Ctx) error {
	result, err := handler.Service.Daily(c.UserContext(), c.Params("guild"), c.Params("user"))
	utils.PanicIfNeeded(err)

	return success(c, "Daily reward claimed", result)
}

func (handler *Economy) Transfer(c *fiber.Ctx) error {
	var request domainEconomy.TransferRequest
	parseBody(c, &request)

	result, err := handler.Service.Transfer(c.UserContext(), c.Params("guild"), request)
	utils.PanicIfNeeded(err)

	return success(c, "Transfer completed", result)
}

func (handler *Economy) Leaderboard(c *fiber.Ctx) error {
	wallets, err := handler.Service.Leaderboard(c.UserContext(), c.Params("guild"), c.QueryInt("limit", 10))
	utils.PanicIfNeeded(err)

	return success(c, "Leaderboard retrieved", wallets)
}
