package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

func TestSessionPeaksStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionPeaksStore(pool)
	ctx := context.Background()

	peaks := &domain.SessionPeaks{
		SessionID:      "a1b2c3",
		Wallet:         "wallet1",
		TokenMint:      "mint1",
		Pool:           "pool1",
		StartedAtMs:    1700000000000,
		StoppedAtMs:    1700000600000,
		SellAtMs:       1700000300000,
		StopReason:     domain.StopReasonSellGrace,
		PreSell:        domain.PeakRecord{PriceSol: 0.00002, PriceUsd: 0.003, MarketCapUsd: 3000000, TimestampMs: 1700000100000},
		PostSell:       domain.PeakRecord{PriceSol: 0.00003, PriceUsd: 0.004, MarketCapUsd: 4000000, TimestampMs: 1700000305000},
		BuysBeforeSell: 7,
		BuysAfterSell:  2,
	}

	require.NoError(t, store.Insert(ctx, peaks))

	got, err := store.GetBySessionID(ctx, "a1b2c3")
	require.NoError(t, err)

	assert.Equal(t, "wallet1", got.Wallet)
	assert.Equal(t, "mint1", got.TokenMint)
	assert.Equal(t, domain.StopReasonSellGrace, got.StopReason)
	assert.Equal(t, int64(1700000300000), got.SellAtMs)
	assert.Equal(t, 0.003, got.PreSell.PriceUsd)
	assert.Equal(t, 0.004, got.PostSell.PriceUsd)
	assert.Equal(t, 7, got.BuysBeforeSell)
	assert.Equal(t, 2, got.BuysAfterSell)
	assert.Greater(t, got.CreatedAt, int64(0))
}

func TestSessionPeaksStore_Duplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionPeaksStore(pool)
	ctx := context.Background()

	peaks := &domain.SessionPeaks{
		SessionID:   "dup1",
		Wallet:      "wallet1",
		TokenMint:   "mint1",
		StartedAtMs: 1,
		StoppedAtMs: 2,
		StopReason:  domain.StopReasonMaxDuration,
	}

	require.NoError(t, store.Insert(ctx, peaks))

	err := store.Insert(ctx, peaks)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSessionPeaksStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionPeaksStore(pool)

	_, err := store.GetBySessionID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionPeaksStore_GetByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionPeaksStore(pool)
	ctx := context.Background()

	for i, id := range []string{"s-late", "s-early"} {
		peaks := &domain.SessionPeaks{
			SessionID:   id,
			Wallet:      "wallet1",
			TokenMint:   "mint1",
			StartedAtMs: int64(2000 - i*1000), // s-late at 2000, s-early at 1000
			StoppedAtMs: 3000,
			StopReason:  domain.StopReasonMaxDuration,
		}
		require.NoError(t, store.Insert(ctx, peaks))
	}

	result, err := store.GetByWallet(ctx, "wallet1")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "s-early", result[0].SessionID)
	assert.Equal(t, "s-late", result[1].SessionID)

	other, err := store.GetByWallet(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSolPriceStore_Postgres(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSolPriceStore(pool)
	ctx := context.Background()

	_, ok, err := store.LatestPriceUsd(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty table should report no price")

	require.NoError(t, store.Insert(ctx, 150.0, 1000))
	require.NoError(t, store.Insert(ctx, 155.5, 2000))
	require.NoError(t, store.Insert(ctx, 151.0, 1500))

	price, ok, err := store.LatestPriceUsd(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 155.5, price)
}

func TestTokenSupplyStore_Postgres(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenSupplyStore(pool)
	ctx := context.Background()

	_, ok, err := store.Supply(ctx, "mint1")
	require.NoError(t, err)
	assert.False(t, ok)

	supply := &domain.TokenSupply{Mint: "mint1", Supply: 1_000_000_000, Decimals: 6, UpdatedAt: 1000}
	require.NoError(t, store.Upsert(ctx, supply))

	supply.Supply = 999_000_000
	supply.UpdatedAt = 2000
	require.NoError(t, store.Upsert(ctx, supply))

	got, ok, err := store.Supply(ctx, "mint1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 999_000_000.0, got.Supply)
	assert.Equal(t, 6, got.Decimals)
	assert.Equal(t, int64(2000), got.UpdatedAt)
}
