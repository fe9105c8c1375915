package postgres

import (
	"context"
	"fmt"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

// TokenSupplyStore implements storage.TokenSupplyStore using PostgreSQL.
type TokenSupplyStore struct {
	pool *Pool
}

// NewTokenSupplyStore creates a new TokenSupplyStore.
func NewTokenSupplyStore(pool *Pool) *TokenSupplyStore {
	return &TokenSupplyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenSupplyStore = (*TokenSupplyStore)(nil)

// Upsert records or refreshes the supply for a mint.
func (s *TokenSupplyStore) Upsert(ctx context.Context, supply *domain.TokenSupply) error {
	if supply == nil || supply.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_supplies (mint, supply, decimals, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mint) DO UPDATE
		SET supply = EXCLUDED.supply,
		    decimals = EXCLUDED.decimals,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, supply.Mint, supply.Supply, supply.Decimals, supply.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert token supply: %w", err)
	}
	return nil
}

// Supply returns the recorded supply for a mint.
func (s *TokenSupplyStore) Supply(ctx context.Context, mint string) (*domain.TokenSupply, bool, error) {
	query := `
		SELECT mint, supply, decimals, updated_at
		FROM token_supplies
		WHERE mint = $1
	`

	var supply domain.TokenSupply
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&supply.Mint,
		&supply.Supply,
		&supply.Decimals,
		&supply.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get token supply: %w", err)
	}

	return &supply, true, nil
}
