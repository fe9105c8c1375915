package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/storage"
)

func testPeaks(sessionID, wallet string, startedAtMs int64) *domain.SessionPeaks {
	return &domain.SessionPeaks{
		SessionID:   sessionID,
		Wallet:      wallet,
		TokenMint:   "mint1",
		StartedAtMs: startedAtMs,
		StoppedAtMs: startedAtMs + 60000,
		StopReason:  domain.StopReasonSellGrace,
		PreSell:     domain.PeakRecord{PriceUsd: 3.0, TimestampMs: startedAtMs + 2000},
		PostSell:    domain.PeakRecord{PriceUsd: 4.0, TimestampMs: startedAtMs + 7000},
	}
}

func TestSessionPeaksStore_InsertAndGet(t *testing.T) {
	store := NewSessionPeaksStore()
	ctx := context.Background()

	peaks := testPeaks("s1", "w1", 1000)
	if err := store.Insert(ctx, peaks); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if got.PreSell.PriceUsd != 3.0 || got.PostSell.PriceUsd != 4.0 {
		t.Errorf("Unexpected peaks: pre=%v post=%v", got.PreSell.PriceUsd, got.PostSell.PriceUsd)
	}
}

func TestSessionPeaksStore_DuplicateKey(t *testing.T) {
	store := NewSessionPeaksStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testPeaks("s1", "w1", 1000)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, testPeaks("s1", "w1", 1000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSessionPeaksStore_NotFound(t *testing.T) {
	store := NewSessionPeaksStore()

	_, err := store.GetBySessionID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSessionPeaksStore_GetByWallet(t *testing.T) {
	store := NewSessionPeaksStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testPeaks("s2", "w1", 2000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testPeaks("s1", "w1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testPeaks("s3", "w2", 1500)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByWallet(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(result))
	}
	if result[0].SessionID != "s1" || result[1].SessionID != "s2" {
		t.Errorf("Expected started_at ASC ordering, got %s, %s", result[0].SessionID, result[1].SessionID)
	}
}

func TestSessionPeaksStore_InvalidInput(t *testing.T) {
	store := NewSessionPeaksStore()

	err := store.Insert(context.Background(), &domain.SessionPeaks{SessionID: "s1"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
