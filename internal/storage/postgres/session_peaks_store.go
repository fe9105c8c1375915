package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

// SessionPeaksStore implements storage.SessionPeaksStore using PostgreSQL.
type SessionPeaksStore struct {
	pool *Pool
}

// NewSessionPeaksStore creates a new SessionPeaksStore.
func NewSessionPeaksStore(pool *Pool) *SessionPeaksStore {
	return &SessionPeaksStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionPeaksStore = (*SessionPeaksStore)(nil)

// Insert adds a session outcome. Returns ErrDuplicateKey if session_id exists.
func (s *SessionPeaksStore) Insert(ctx context.Context, peaks *domain.SessionPeaks) error {
	if peaks == nil || peaks.SessionID == "" || peaks.Wallet == "" || peaks.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO session_peaks (
			session_id, wallet, token_mint, pool,
			started_at, stopped_at, sell_at, stop_reason,
			pre_price_sol, pre_price_usd, pre_market_cap_usd, pre_timestamp,
			post_price_sol, post_price_usd, post_market_cap_usd, post_timestamp,
			buys_before_sell, buys_after_sell
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := s.pool.Exec(ctx, query,
		peaks.SessionID,
		peaks.Wallet,
		peaks.TokenMint,
		peaks.Pool,
		peaks.StartedAtMs,
		peaks.StoppedAtMs,
		peaks.SellAtMs,
		peaks.StopReason,
		peaks.PreSell.PriceSol,
		peaks.PreSell.PriceUsd,
		peaks.PreSell.MarketCapUsd,
		peaks.PreSell.TimestampMs,
		peaks.PostSell.PriceSol,
		peaks.PostSell.PriceUsd,
		peaks.PostSell.MarketCapUsd,
		peaks.PostSell.TimestampMs,
		peaks.BuysBeforeSell,
		peaks.BuysAfterSell,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert session peaks: %w", err)
	}
	return nil
}

// GetBySessionID retrieves one session outcome.
func (s *SessionPeaksStore) GetBySessionID(ctx context.Context, sessionID string) (*domain.SessionPeaks, error) {
	query := selectSessionPeaks + ` WHERE session_id = $1`

	row := s.pool.QueryRow(ctx, query, sessionID)
	peaks, err := scanSessionPeaksRow(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session peaks: %w", err)
	}

	return peaks, nil
}

// GetByWallet retrieves all session outcomes for a wallet, ordered by started_at ASC.
func (s *SessionPeaksStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.SessionPeaks, error) {
	query := selectSessionPeaks + ` WHERE wallet = $1 ORDER BY started_at ASC, session_id ASC`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get session peaks by wallet: %w", err)
	}
	defer rows.Close()

	var result []*domain.SessionPeaks
	for rows.Next() {
		peaks, err := scanSessionPeaksRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session peaks row: %w", err)
		}
		result = append(result, peaks)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session peaks rows: %w", err)
	}

	return result, nil
}

const selectSessionPeaks = `
	SELECT session_id, wallet, token_mint, pool,
	       started_at, stopped_at, sell_at, stop_reason,
	       pre_price_sol, pre_price_usd, pre_market_cap_usd, pre_timestamp,
	       post_price_sol, post_price_usd, post_market_cap_usd, post_timestamp,
	       buys_before_sell, buys_after_sell, created_at
	FROM session_peaks
`

// scanSessionPeaksRow scans a single row into a SessionPeaks.
func scanSessionPeaksRow(row pgx.Row) (*domain.SessionPeaks, error) {
	var peaks domain.SessionPeaks

	err := row.Scan(
		&peaks.SessionID,
		&peaks.Wallet,
		&peaks.TokenMint,
		&peaks.Pool,
		&peaks.StartedAtMs,
		&peaks.StoppedAtMs,
		&peaks.SellAtMs,
		&peaks.StopReason,
		&peaks.PreSell.PriceSol,
		&peaks.PreSell.PriceUsd,
		&peaks.PreSell.MarketCapUsd,
		&peaks.PreSell.TimestampMs,
		&peaks.PostSell.PriceSol,
		&peaks.PostSell.PriceUsd,
		&peaks.PostSell.MarketCapUsd,
		&peaks.PostSell.TimestampMs,
		&peaks.BuysBeforeSell,
		&peaks.BuysAfterSell,
		&peaks.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &peaks, nil
}
