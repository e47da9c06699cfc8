package economy

import (
	"context"
	"time"
)

const Collection = "wallets"

type Wallet struct {
	ID        string     `json:"-" bson:"_id"`
	GuildID   string     `json:"guild_id" bson:"guild_id"`
	UserID    string     `json:"user_id" bson:"user_id"`
	Balance   int64      `json:"balance" bson:"balance"`
	Bank      int64      `json:"bank" bson:"bank"`
	LastDaily *time.Time `json:"last_daily,omitempty" bson:"last_daily"`
}

func (w Wallet) NetWorth() int64 { return w.Balance + w.Bank }

// WalletID is the document id of a member's wallet.
func WalletID(guildID, userID string) string { return guildID + ":" + userID }

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type TransferRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
}

type TransferResult struct {
	From Wallet `json:"from"`
	To   Wallet `json:"to"`
}

type DailyResult struct {
	Wallet    Wallet    `json:"wallet"`
	Reward    int64     `json:"reward"`
	NextClaim time.Time `json:"next_claim"`
}

type IEconomyUsecase interface {
	Balance(ctx context.Context, guildID, userID string) (Wallet, error)
	Deposit(ctx context.Context, guildID, userID string, amount int64) (Wallet, error)
	Withdraw(ctx context.Context, guildID, userID string, amount int64) (Wallet, error)
	Daily(ctx context.Context, guildID, userID string) (DailyResult, error)
	Transfer(ctx context.Context, guildID string, req TransferRequest) (TransferResult, error)
	AddMoney(ctx context.Context, guildID, userID string, amount int64) (Wallet, error)
	RemoveMoney(ctx context.Context, guildID, userID string, amount int64) (Wallet, error)
	Leaderboard(ctx context.Context, guildID string, limit int) ([]Wallet, error)
}
