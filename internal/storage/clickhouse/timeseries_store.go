package clickhouse

import (
	"context"
	"fmt"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

// TimeseriesStore implements storage.TimeseriesStore using ClickHouse.
type TimeseriesStore struct {
	conn *Conn
}

// NewTimeseriesStore creates a new TimeseriesStore.
func NewTimeseriesStore(conn *Conn) *TimeseriesStore {
	return &TimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TimeseriesStore = (*TimeseriesStore)(nil)

// InsertBatch adds all points of one session flush.
// Fails the entire batch on duplicate (session_id, tx_signature).
func (s *TimeseriesStore) InsertBatch(ctx context.Context, points []*domain.TimeseriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		sessionID   string
		txSignature string
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.SessionID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.SessionID, p.TxSignature}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree doesn't enforce uniqueness; a session is flushed exactly
	// once, so one existence probe per batch is enough.
	exists, err := s.sessionExists(ctx, points[0].SessionID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO session_timeseries (
			session_id, wallet, token_mint, timestamp_ms, slot,
			price_sol, price_usd, market_cap_usd, pool, tx_signature, side
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.SessionID, p.Wallet, p.TokenMint, uint64(p.TimestampMs), uint64(p.Slot),
			p.PriceSol, p.PriceUsd, p.MarketCapUsd, p.Pool, p.TxSignature, p.Side,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySessionID retrieves all points for a session, ordered by timestamp ASC.
func (s *TimeseriesStore) GetBySessionID(ctx context.Context, sessionID string) ([]*domain.TimeseriesPoint, error) {
	query := `
		SELECT session_id, wallet, token_mint, timestamp_ms, slot,
		       price_sol, price_usd, market_cap_usd, pool, tx_signature, side
		FROM session_timeseries
		WHERE session_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query by session id: %w", err)
	}
	defer rows.Close()

	return scanTimeseries(rows)
}

// sessionExists checks if any point for the session was already written.
func (s *TimeseriesStore) sessionExists(ctx context.Context, sessionID string) (bool, error) {
	query := `
		SELECT count(*) FROM session_timeseries
		WHERE session_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, sessionID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows used by the scanners.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// scanTimeseries scans multiple rows.
func scanTimeseries(rows chRows) ([]*domain.TimeseriesPoint, error) {
	var points []*domain.TimeseriesPoint

	for rows.Next() {
		var p domain.TimeseriesPoint
		var timestampMs, slot uint64

		err := rows.Scan(
			&p.SessionID, &p.Wallet, &p.TokenMint, &timestampMs, &slot,
			&p.PriceSol, &p.PriceUsd, &p.MarketCapUsd, &p.Pool, &p.TxSignature, &p.Side,
		)
		if err != nil {
			return nil, fmt.Errorf("scan timeseries row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		p.Slot = int64(slot)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeseries rows: %w", err)
	}

	return points, nil
}
