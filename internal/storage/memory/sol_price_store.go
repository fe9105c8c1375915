package memory

import (
	"context"
	"sync"

	"solana-wallet-monitor/internal/storage"
)

// solPricePoint is one recorded SOL/USD observation.
type solPricePoint struct {
	priceUsd    float64
	fetchedAtMs int64
}

// SolPriceStore is an in-memory implementation of storage.SolPriceStore.
type SolPriceStore struct {
	mu     sync.RWMutex
	points []solPricePoint
}

// NewSolPriceStore creates a new in-memory SOL price store.
func NewSolPriceStore() *SolPriceStore {
	return &SolPriceStore{}
}

// Compile-time interface check.
var _ storage.SolPriceStore = (*SolPriceStore)(nil)

// Insert records a new price observation.
func (s *SolPriceStore) Insert(_ context.Context, priceUsd float64, fetchedAtMs int64) error {
	if priceUsd <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = append(s.points, solPricePoint{priceUsd: priceUsd, fetchedAtMs: fetchedAtMs})
	return nil
}

// LatestPriceUsd returns the observation with the highest fetched_at.
func (s *SolPriceStore) LatestPriceUsd(_ context.Context) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.points) == 0 {
		return 0, false, nil
	}

	latest := s.points[0]
	for _, p := range s.points[1:] {
		if p.fetchedAtMs >= latest.fetchedAtMs {
			latest = p
		}
	}

	return latest.priceUsd, true, nil
}
