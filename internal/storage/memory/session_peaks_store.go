package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

// SessionPeaksStore is an in-memory implementation of storage.SessionPeaksStore.
type SessionPeaksStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SessionPeaks // keyed by session_id
}

// NewSessionPeaksStore creates a new in-memory session peaks store.
func NewSessionPeaksStore() *SessionPeaksStore {
	return &SessionPeaksStore{
		data: make(map[string]*domain.SessionPeaks),
	}
}

// Compile-time interface check.
var _ storage.SessionPeaksStore = (*SessionPeaksStore)(nil)

// Insert adds a session outcome. Returns ErrDuplicateKey if session_id exists.
func (s *SessionPeaksStore) Insert(_ context.Context, peaks *domain.SessionPeaks) error {
	if peaks == nil || peaks.SessionID == "" || peaks.Wallet == "" || peaks.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[peaks.SessionID]; exists {
		return storage.ErrDuplicateKey
	}

	peaksCopy := *peaks
	s.data[peaks.SessionID] = &peaksCopy
	return nil
}

// GetBySessionID retrieves one session outcome.
func (s *SessionPeaksStore) GetBySessionID(_ context.Context, sessionID string) (*domain.SessionPeaks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peaks, ok := s.data[sessionID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	peaksCopy := *peaks
	return &peaksCopy, nil
}

// GetByWallet retrieves all session outcomes for a wallet, ordered by started_at ASC.
func (s *SessionPeaksStore) GetByWallet(_ context.Context, wallet string) ([]*domain.SessionPeaks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SessionPeaks
	for _, p := range s.data {
		if p.Wallet == wallet {
			peaksCopy := *p
			result = append(result, &peaksCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAtMs < result[j].StartedAtMs
	})

	return result, nil
}
