package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-guard/core/config"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	domainEconomy "github.com/AzielCF/az-guard/domains/economy"
	"github.com/AzielCF/az-guard/infrastructure/collection"
	"github.com/AzielCF/az-guard/pkg/docquery"
	pkgError "github.com/AzielCF/az-guard/pkg/error"
	"github.com/AzielCF/az-guard/validations"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	walletRetries      = 5
	defaultBoardSize   = 10
	maxLeaderboardSize = 100
)

type economyService struct {
	wallets *collection.Typed[domainEconomy.Wallet]
	cfg     config.EconomyConfig
	now     func() time.Time
}

func NewEconomyService(manager *collection.Manager, cfg config.EconomyConfig) domainEconomy.IEconomyUsecase {
	return &economyService{
		wallets: collection.NewTyped[domainEconomy.Wallet](manager.Collection(domainEconomy.Collection)),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *economyService) fresh(guildID, userID string) domainEconomy.Wallet {
	return domainEconomy.Wallet{
		ID:      domainEconomy.WalletID(guildID, userID),
		GuildID: guildID,
		UserID:  userID,
		Balance: s.cfg.StartingBalance,
	}
}

func (s *economyService) Balance(ctx context.Context, guildID, userID string) (domainEconomy.Wallet, error) {
	if err := validateMember(guildID, userID); err != nil {
		return domainEconomy.Wallet{}, err
	}
	w, found, err := s.wallets.FindOne(ctx, docquery.Query{"_id": domainEconomy.WalletID(guildID, userID)})
	if err != nil {
		return domainEconomy.Wallet{}, fmt.Errorf("failed to load wallet: %w", err)
	}
	if !found {
		return s.fresh(guildID, userID), nil
	}
	return w, nil
}

// ensure returns the stored wallet, inserting a fresh one on first touch.
func (s *economyService) ensure(ctx context.Context, guildID, userID string) (domainEconomy.Wallet, error) {
	q := docquery.Query{"_id": domainEconomy.WalletID(guildID, userID)}
	w, found, err := s.wallets.FindOne(ctx, q)
	if err != nil {
		return w, fmt.Errorf("failed to load wallet: %w", err)
	}
	if found {
		return w, nil
	}
	w = s.fresh(guildID, userID)
	if _, err := s.wallets.InsertOne(ctx, w); err != nil {
		// Someone else created it meanwhile.
		stored, found, findErr := s.wallets.FindOne(ctx, q)
		if findErr != nil || !found {
			return w, fmt.Errorf("failed to create wallet: %w", err)
		}
		return stored, nil
	}
	return w, nil
}

// mutate applies fn to the member's wallet with an optimistic check on the
// previous balance and bank, retrying when another write got there first.
func (s *economyService) mutate(ctx context.Context, guildID, userID string, fn func(w *domainEconomy.Wallet) error) (domainEconomy.Wallet, error) {
	for attempt := 0; attempt < walletRetries; attempt++ {
		current, err := s.ensure(ctx, guildID, userID)
		if err != nil {
			return domainEconomy.Wallet{}, err
		}
		next := current
		if err := fn(&next); err != nil {
			return domainEconomy.Wallet{}, err
		}

		set := map[string]any{"balance": next.Balance, "bank": next.Bank}
		if next.LastDaily != nil {
			set["last_daily"] = next.LastDaily.UTC()
		}
		q := docquery.Query{"_id": current.ID, "balance": current.Balance, "bank": current.Bank}
		res, err := s.wallets.UpdateOne(ctx, q, docquery.Update{"$set": set}, domainCollection.UpdateOptions{})
		if err != nil {
			return domainEconomy.Wallet{}, fmt.Errorf("failed to update wallet: %w", err)
		}
		if res.Matched == 1 {
			return next, nil
		}
		// The copy we read was stale; drop it and read the store again.
		s.wallets.Raw().Invalidate(docquery.Query{"_id": current.ID})
		logrus.Debugf("[ECONOMY] Wallet %s changed concurrently, retry %d", current.ID, attempt+1)
	}
	return domainEconomy.Wallet{}, pkgError.InternalError("wallet is busy, try again")
}

func (s *economyService) Deposit(ctx context.Context, guildID, userID string, amount int64) (domainEconomy.Wallet, error) {
	if err := validateMoney(ctx, guildID, userID, amount); err != nil {
		return domainEconomy.Wallet{}, err
	}
	return s.mutate(ctx, guildID, userID, func(w *domainEconomy.Wallet) error {
		if w.Balance < amount {
			return s.insufficient("wallet", w.Balance)
		}
		w.Balance -= amount
		w.Bank += amount
		return nil
	})
}

func (s *economyService) Withdraw(ctx context.Context, guildID, userID string, amount int64) (domainEconomy.Wallet, error) {
	if err := validateMoney(ctx, guildID, userID, amount); err != nil {
		return domainEconomy.Wallet{}, err
	}
	return s.mutate(ctx, guildID, userID, func(w *domainEconomy.Wallet) error {
		if w.Bank < amount {
			return s.insufficient("bank", w.Bank)
		}
		w.Bank -= amount
		w.Balance += amount
		return nil
	})
}

func (s *economyService) Daily(ctx context.Context, guildID, userID string) (domainEconomy.DailyResult, error) {
	if err := validateMember(guildID, userID); err != nil {
		return domainEconomy.DailyResult{}, err
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	w, err := s.mutate(ctx, guildID, userID, func(w *domainEconomy.Wallet) error {
		if w.LastDaily != nil {
			next := w.LastDaily.Add(s.cfg.DailyCooldown)
			if now.Before(next) {
				return pkgError.CooldownError(fmt.Sprintf("daily reward already claimed, come back in %s",
					next.Sub(now).Round(time.Second)))
			}
		}
		w.Balance += s.cfg.DailyReward
		w.LastDaily = &now
		return nil
	})
	if err != nil {
		return domainEconomy.DailyResult{}, err
	}
	return domainEconomy.DailyResult{Wallet: w, Reward: s.cfg.DailyReward, NextClaim: now.Add(s.cfg.DailyCooldown)}, nil
}

func (s *economyService) Transfer(ctx context.Context, guildID string, req domainEconomy.TransferRequest) (domainEconomy.TransferResult, error) {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return domainEconomy.TransferResult{}, err
	}
	if err := validations.ValidateTransfer(ctx, req); err != nil {
		return domainEconomy.TransferResult{}, err
	}

	from, err := s.mutate(ctx, guildID, req.FromUserID, func(w *domainEconomy.Wallet) error {
		if w.Balance < req.Amount {
			return s.insufficient("wallet", w.Balance)
		}
		w.Balance -= req.Amount
		return nil
	})
	if err != nil {
		return domainEconomy.TransferResult{}, err
	}
	to, err := s.mutate(ctx, guildID, req.ToUserID, func(w *domainEconomy.Wallet) error {
		w.Balance += req.Amount
		return nil
	})
	if err != nil {
		if _, refundErr := s.mutate(ctx, guildID, req.FromUserID, func(w *domainEconomy.Wallet) error {
			w.Balance += req.Amount
			return nil
		}); refundErr != nil {
			logrus.WithError(refundErr).Errorf("[ECONOMY] Refund of %d to %s failed after transfer error", req.Amount, req.FromUserID)
		}
		return domainEconomy.TransferResult{}, err
	}
	logrus.Infof("[ECONOMY] %s transferred %d to %s in %s", req.FromUserID, req.Amount, req.ToUserID, guildID)
	return domainEconomy.TransferResult{From: from, To: to}, nil
}

func (s *economyService) AddMoney(ctx context.Context, guildID, userID string, amount int64) (domainEconomy.Wallet, error) {
	if err := validateMoney(ctx, guildID, userID, amount); err != nil {
		return domainEconomy.Wallet{}, err
	}
	return s.mutate(ctx, guildID, userID, func(w *domainEconomy.Wallet) error {
		w.Balance += amount
		return nil
	})
}

// RemoveMoney takes from the wallet and never goes below zero.
func (s *economyService) RemoveMoney(ctx context.Context, guildID, userID string, amount int64) (domainEconomy.Wallet, error) {
	if err := validateMoney(ctx, guildID, userID, amount); err != nil {
		return domainEconomy.Wallet{}, err
	}
	return s.mutate(ctx, guildID, userID, func(w *domainEconomy.Wallet) error {
		w.Balance = max(w.Balance-amount, 0)
		return nil
	})
}

func (s *economyService) Leaderboard(ctx context.Context, guildID string, limit int) ([]domainEconomy.Wallet, error) {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultBoardSize
	}
	limit = min(limit, maxLeaderboardSize)
	wallets, err := s.wallets.Find(ctx, docquery.Query{"guild_id": guildID}, domainCollection.FindOptions{
		Limit: int64(limit),
		Sort:  []docquery.SortField{{Field: "balance", Desc: true}, {Field: "bank", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return wallets, nil
}

func (s *economyService) insufficient(where string, have int64) error {
	return pkgError.InsufficientFundsError(fmt.Sprintf("not enough money in %s (have %s%s)",
		where, s.cfg.CurrencySymbol, humanize.Comma(have)))
}

func validateMember(guildID, userID string) error {
	if err := validations.ValidateID("guild_id", guildID); err != nil {
		return err
	}
	return validations.ValidateID("user_id", userID)
}

func validateMoney(ctx context.Context, guildID, userID string, amount int64) error {
	if err := validateMember(guildID, userID); err != nil {
		return err
	}
	return validations.ValidateAmount(ctx, domainEconomy.AmountRequest{Amount: amount})
}
