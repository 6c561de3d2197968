package cache

import (
	"context"
	"testing"
	"time"

	"parts-depot/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestSnapshotRulesRoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSnapshotStore(client, time.Hour)
	ctx := context.Background()

	end := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	rules := []domain.PriceRule{{
		ID:            "r1",
		Name:          "year end",
		Type:          domain.DiscountPercentage,
		DiscountValue: decimal.RequireFromString("12.5"),
		ProductIDs:    []string{"p1"},
		Category:      domain.CategoryAll,
		StartDate:     time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       &end,
		Priority:      10,
		Exclusive:     true,
	}}

	require.NoError(t, store.SaveRules(ctx, rules))
	assert.Equal(t, time.Hour, mr.TTL(rulesSnapshotKey))

	snap, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	got := snap.Items[0]
	assert.Equal(t, domain.DiscountPercentage, got.Type)
	assert.True(t, got.DiscountValue.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, got.EndDate.Equal(end))
	assert.True(t, got.Exclusive)
	assert.False(t, snap.SavedAt.IsZero())
}

func TestSnapshotCatalogDropsEngineOutput(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSnapshotStore(client, 0)
	ctx := context.Background()

	original := decimal.NewFromInt(45000)
	products := []domain.Product{{
		ID:            "p1",
		Name:          "R-32 cylinder",
		Category:      "refrigerant-gas",
		Price:         decimal.NewFromInt(40500),
		OriginalPrice: &original,
		Stock:         3,
	}}

	require.NoError(t, store.SaveCatalog(ctx, products))
	assert.NotNil(t, products[0].OriginalPrice, "caller's slice must not be touched")

	snap, err := store.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Nil(t, snap.Items[0].OriginalPrice)
	assert.True(t, snap.Items[0].Price.Equal(decimal.NewFromInt(40500)))
}

func TestSnapshotMissingAndExpired(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSnapshotStore(client, time.Minute)
	ctx := context.Background()

	_, err := store.LoadRules(ctx)
	assert.ErrorIs(t, err, ErrSnapshotMissing)

	require.NoError(t, store.SaveRules(ctx, nil))
	snap, err := store.LoadRules(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)

	mr.FastForward(2 * time.Minute)
	_, err = store.LoadRules(ctx)
	assert.ErrorIs(t, err, ErrSnapshotMissing)
}

func TestSnapshotCorruptPayload(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSnapshotStore(client, time.Minute)

	require.NoError(t, mr.Set(catalogSnapshotKey, "{not json"))
	_, err := store.LoadCatalog(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSnapshotMissing)
}

func TestSnapshotRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSnapshotStore(client, time.Minute)
	mr.Close()

	assert.Error(t, store.SaveRules(context.Background(), nil))
	_, err := store.LoadRules(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSnapshotMissing)
}
