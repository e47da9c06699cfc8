package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/AzielCF/az-guard/infrastructure/docstore/storetest"
	"github.com/AzielCF/az-guard/pkg/docquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	assert.Empty(t, filter(nil))
	f := filter(docquery.Query{"guild_id": "g"})
	assert.Equal(t, "g", f["guild_id"])
}

func TestNewStore_RequiresConfig(t *testing.T) {
	_, err := NewStore(context.Background(), Config{})
	assert.Error(t, err)
}

func TestStore_Live(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("Skipping: MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, Config{
		URI:            uri,
		Database:       fmt.Sprintf("azguard_test_%d", time.Now().UnixNano()),
		ConnectTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Skipf("Skipping: MongoDB not available: %v", err)
	}
	defer func() {
		_ = s.db.Drop(ctx)
		require.NoError(t, s.Close(ctx))
	}()

	storetest.Run(t, s, "mongo")
}
