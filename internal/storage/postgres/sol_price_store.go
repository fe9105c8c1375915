package postgres

import (
	"context"
	"fmt"

	"solana-wallet-monitor/internal/storage"
)

// SolPriceStore implements storage.SolPriceStore using PostgreSQL.
type SolPriceStore struct {
	pool *Pool
}

// NewSolPriceStore creates a new SolPriceStore.
func NewSolPriceStore(pool *Pool) *SolPriceStore {
	return &SolPriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SolPriceStore = (*SolPriceStore)(nil)

// Insert records a new SOL/USD price observation.
func (s *SolPriceStore) Insert(ctx context.Context, priceUsd float64, fetchedAtMs int64) error {
	if priceUsd <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sol_prices (price_usd, fetched_at)
		VALUES ($1, $2)
	`

	_, err := s.pool.Exec(ctx, query, priceUsd, fetchedAtMs)
	if err != nil {
		return fmt.Errorf("insert sol price: %w", err)
	}
	return nil
}

// LatestPriceUsd returns the most recently fetched SOL price in USD.
func (s *SolPriceStore) LatestPriceUsd(ctx context.Context) (float64, bool, error) {
	query := `
		SELECT price_usd
		FROM sol_prices
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`

	var price float64
	err := s.pool.QueryRow(ctx, query).Scan(&price)
	if err != nil {
		if isNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get latest sol price: %w", err)
	}

	return price, true, nil
}
