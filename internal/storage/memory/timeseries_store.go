package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

// TimeseriesStore is an in-memory implementation of storage.TimeseriesStore.
type TimeseriesStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TimeseriesPoint // keyed by (session_id, tx_signature)
}

// NewTimeseriesStore creates a new in-memory session timeseries store.
func NewTimeseriesStore() *TimeseriesStore {
	return &TimeseriesStore{
		data: make(map[string]*domain.TimeseriesPoint),
	}
}

// Compile-time interface check.
var _ storage.TimeseriesStore = (*TimeseriesStore)(nil)

// pointKey generates a unique key for a timeseries point.
func pointKey(sessionID, txSignature string) string {
	return fmt.Sprintf("%s|%s", sessionID, txSignature)
}

// InsertBatch adds multiple points. Fails entire batch on duplicate.
func (s *TimeseriesStore) InsertBatch(_ context.Context, points []*domain.TimeseriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.SessionID == "" {
			return storage.ErrInvalidInput
		}
		key := pointKey(p.SessionID, p.TxSignature)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		key := pointKey(p.SessionID, p.TxSignature)
		pointCopy := *p
		s.data[key] = &pointCopy
	}

	return nil
}

// GetBySessionID retrieves all points for a session, ordered by timestamp ASC.
func (s *TimeseriesStore) GetBySessionID(_ context.Context, sessionID string) ([]*domain.TimeseriesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TimeseriesPoint
	for _, p := range s.data {
		if p.SessionID == sessionID {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}
