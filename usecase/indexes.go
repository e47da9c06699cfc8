package usecase

import (
	"context"

	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	domainEconomy "github.com/AzielCF/az-guard/domains/economy"
	domainModeration "github.com/AzielCF/az-guard/domains/moderation"
	"github.com/sirupsen/logrus"
)

// IndexSpecs lists the indexes the services rely on.
func IndexSpecs() []domainCollection.IndexSpec {
	return []domainCollection.IndexSpec{
		{Collection: domainEconomy.Collection, Fields: []string{"guild_id", "user_id"}, Unique: true},
		{Collection: domainEconomy.Collection, Fields: []string{"guild_id", "balance"}},
		{Collection: domainModeration.Collection, Fields: []string{"guild_id", "user_id", "action"}},
		{Collection: domainModeration.Collection, Fields: []string{"guild_id", "created_at"}},
	}
}

// EnsureIndexes creates every index from IndexSpecs on store.
func EnsureIndexes(ctx context.Context, store domainCollection.IDocumentStore) error {
	specs := IndexSpecs()
	if err := store.EnsureIndexes(ctx, specs); err != nil {
		return err
	}
	logrus.Infof("[MIGRATION] %d indexes ensured on %s", len(specs), store.Kind())
	return nil
}
