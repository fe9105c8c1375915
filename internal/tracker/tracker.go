// Package tracker bridges the transaction stream and the session manager.
// It decodes notifications into trade events, enriches them with USD prices
// and market caps, opens a monitoring session on a tracked wallet's first
// buy, signals the first sell, and routes every priced event to the
// sessions watching its token.
package tracker

import (
	"context"
	"log"

	"github.com/benbjohnson/clock"

	"solana-wallet-monitor/internal/decoder"
	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/pricing"
	"solana-wallet-monitor/internal/storage"
	"solana-wallet-monitor/internal/stream"
)

// Registry is the session manager surface the tracker drives.
type Registry interface {
	StartMonitoring(wallet, mint, pool string, maxDurationSec int, seed *domain.PriceSnapshot) string
	SignalSell(wallet, mint string, snap *domain.PriceSnapshot)
	IsMonitoring(wallet, mint string) bool
	Dispatch(ev *domain.TradeEvent, priceUsd, marketCapUsd float64)
}

// Decoder turns a raw transaction into zero or more trade events.
type Decoder interface {
	ParseTransaction(tx decoder.Transaction) []*domain.TradeEvent
}

// Config configures tracker behavior.
type Config struct {
	// TrackedWallets are the wallets whose first buys open sessions.
	TrackedWallets []string
	// MaxSessionDurationSec caps each session's lifetime.
	MaxSessionDurationSec int
}

// Tracker consumes stream notifications and drives the session registry.
type Tracker struct {
	registry Registry
	decoder  Decoder
	solPrice storage.SolPriceStore
	supplies storage.TokenSupplyStore
	clk      clock.Clock

	tracked     map[string]struct{}
	maxDuration int
}

// New creates a tracker.
func New(registry Registry, dec Decoder, solPrice storage.SolPriceStore,
	supplies storage.TokenSupplyStore, clk clock.Clock, cfg Config) *Tracker {

	tracked := make(map[string]struct{}, len(cfg.TrackedWallets))
	for _, w := range cfg.TrackedWallets {
		if w != "" {
			tracked[w] = struct{}{}
		}
	}

	return &Tracker{
		registry:    registry,
		decoder:     dec,
		solPrice:    solPrice,
		supplies:    supplies,
		clk:         clk,
		tracked:     tracked,
		maxDuration: cfg.MaxSessionDurationSec,
	}
}

// Run consumes notifications until the channel closes or ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, notifications <-chan stream.TransactionNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			t.handle(ctx, n)
		}
	}
}

// handle processes one notification. All errors are per-message: logged
// and skipped, never propagated.
func (t *Tracker) handle(ctx context.Context, n stream.TransactionNotification) {
	ts := n.BlockTimeMs
	if ts == 0 {
		ts = t.clk.Now().UnixMilli()
	}

	events := t.decoder.ParseTransaction(decoder.Transaction{
		Signature:   n.Signature,
		Slot:        n.Slot,
		Timestamp:   ts,
		Logs:        n.Logs,
		AccountKeys: n.AccountKeys,
		Err:         n.Err,
	})

	for _, ev := range events {
		t.process(ctx, ev)
	}
}

func (t *Tracker) process(ctx context.Context, ev *domain.TradeEvent) {
	solUsd, ok, err := t.solPrice.LatestPriceUsd(ctx)
	if err != nil || !ok {
		log.Printf("[tracker] no SOL price available, dropping %s: %v", ev.Signature, err)
		return
	}

	supply, known, err := t.supplies.Supply(ctx, ev.TokenMint)
	if err != nil || !known {
		log.Printf("[tracker] unknown supply for %s, dropping %s: %v", ev.TokenMint, ev.Signature, err)
		return
	}

	// The decoded legs are raw: SOL in lamports, token in base units
	solLamports, tokenRaw := ev.AmountIn, ev.AmountOut
	if ev.Side == domain.TradeSideSell {
		solLamports, tokenRaw = ev.AmountOut, ev.AmountIn
	}

	priceSol, ok := pricing.FromAmounts(solLamports, tokenRaw, supply.Decimals)
	if !ok {
		log.Printf("[tracker] unpriceable trade %s, dropping", ev.Signature)
		return
	}
	ev.PriceSol = priceSol

	quote := pricing.Compute(priceSol, solUsd, supply.Supply)

	if _, isTracked := t.tracked[ev.Wallet]; isTracked {
		snap := &domain.PriceSnapshot{
			PriceSol:     quote.PriceSol,
			PriceUsd:     quote.PriceUsd,
			MarketCapUsd: quote.MarketCapUsd,
			Signature:    ev.Signature,
		}

		switch ev.Side {
		case domain.TradeSideBuy:
			if !t.registry.IsMonitoring(ev.Wallet, ev.TokenMint) {
				key := t.registry.StartMonitoring(ev.Wallet, ev.TokenMint, ev.Pool, t.maxDuration, snap)
				log.Printf("[tracker] first buy by %s of %s, monitoring as %s", ev.Wallet, ev.TokenMint, key)
			}
		case domain.TradeSideSell:
			if t.registry.IsMonitoring(ev.Wallet, ev.TokenMint) {
				t.registry.SignalSell(ev.Wallet, ev.TokenMint, snap)
			}
		}
	}

	t.registry.Dispatch(ev, quote.PriceUsd, quote.MarketCapUsd)
}
