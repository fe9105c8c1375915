package storage

import (
	"context"

	"solana-wallet-monitor/internal/domain"
)

// SolPriceStore provides the reference SOL/USD price used to convert
// SOL-denominated trade prices to USD.
type SolPriceStore interface {
	// LatestPriceUsd returns the most recently recorded SOL price in USD.
	// The bool is false when no price has been recorded yet.
	LatestPriceUsd(ctx context.Context) (float64, bool, error)

	// Insert records a new price observation.
	Insert(ctx context.Context, priceUsd float64, fetchedAtMs int64) error
}

// TokenSupplyStore provides token circulating supply and decimals for
// market cap computation.
type TokenSupplyStore interface {
	// Supply returns the recorded supply for a mint.
	// The bool is false when the mint is unknown.
	Supply(ctx context.Context, mint string) (*domain.TokenSupply, bool, error)

	// Upsert records or refreshes the supply for a mint.
	Upsert(ctx context.Context, supply *domain.TokenSupply) error
}

// TimeseriesStore persists per-session trade observations.
type TimeseriesStore interface {
	// InsertBatch adds all points of one session flush.
	// Fails the entire batch on duplicate (session_id, tx_signature).
	InsertBatch(ctx context.Context, points []*domain.TimeseriesPoint) error

	// GetBySessionID retrieves all points for a session, ordered by timestamp ASC.
	GetBySessionID(ctx context.Context, sessionID string) ([]*domain.TimeseriesPoint, error)
}

// SessionPeaksStore persists the peak statistics of completed sessions.
type SessionPeaksStore interface {
	// Insert adds the outcome of one session. Returns ErrDuplicateKey if
	// the session_id already exists.
	Insert(ctx context.Context, peaks *domain.SessionPeaks) error

	// GetBySessionID retrieves one session outcome. Returns ErrNotFound
	// if the session_id does not exist.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.SessionPeaks, error)

	// GetByWallet retrieves all session outcomes for a wallet, ordered by
	// started_at ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.SessionPeaks, error)
}
