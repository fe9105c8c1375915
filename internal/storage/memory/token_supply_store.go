package memory

import (
	"context"
	"sync"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

// TokenSupplyStore is an in-memory implementation of storage.TokenSupplyStore.
type TokenSupplyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenSupply // keyed by mint
}

// NewTokenSupplyStore creates a new in-memory token supply store.
func NewTokenSupplyStore() *TokenSupplyStore {
	return &TokenSupplyStore{
		data: make(map[string]*domain.TokenSupply),
	}
}

// Compile-time interface check.
var _ storage.TokenSupplyStore = (*TokenSupplyStore)(nil)

// Upsert records or refreshes the supply for a mint.
func (s *TokenSupplyStore) Upsert(_ context.Context, supply *domain.TokenSupply) error {
	if supply == nil || supply.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	supplyCopy := *supply
	s.data[supply.Mint] = &supplyCopy
	return nil
}

// Supply returns the recorded supply for a mint.
func (s *TokenSupplyStore) Supply(_ context.Context, mint string) (*domain.TokenSupply, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supply, ok := s.data[mint]
	if !ok {
		return nil, false, nil
	}

	supplyCopy := *supply
	return &supplyCopy, true, nil
}
