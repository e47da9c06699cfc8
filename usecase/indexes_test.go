package usecase

import (
	"context"
	"testing"

	domainEconomy "github.com/AzielCF/az-guard/domains/economy"
	"github.com/AzielCF/az-guard/infrastructure/docstore"
	"github.com/AzielCF/az-guard/infrastructure/memstore"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIndexes_WalletsAreUniquePerMember(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, EnsureIndexes(ctx, store))

	wallets := store.Collection(domainEconomy.Collection)
	_, err := wallets.InsertOne(ctx, docquery.Document{"_id": "a", "guild_id": "g1", "user_id": "u1"})
	require.NoError(t, err)

	_, err = wallets.InsertOne(ctx, docquery.Document{"_id": "b", "guild_id": "g1", "user_id": "u1"})
	assert.ErrorIs(t, err, docstore.ErrDuplicateKey)

	_, err = wallets.InsertOne(ctx, docquery.Document{"_id": "c", "guild_id": "g2", "user_id": "u1"})
	assert.NoError(t, err)
}
