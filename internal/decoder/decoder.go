// Package decoder turns raw transaction notifications into trade events.
// Per-program parsers are registered by program ID; unknown programs and
// unparsable logs yield no events instead of errors.
package decoder

import (
	"sort"

	"solana-wallet-monitor/internal/domain"
)

// Known program and mint addresses.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// PumpFun is the pump.fun program ID.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	// WSOL is the Wrapped SOL mint address.
	WSOL = "So11111111111111111111111111111111111111112"
)

// Transaction is a raw transaction as delivered by the stream.
type Transaction struct {
	Signature   string
	Slot        int64
	Timestamp   int64 // Unix milliseconds
	Logs        []string
	AccountKeys []string
	Err         interface{} // non-nil for failed transactions
}

// Parser extracts trade events for one DEX program.
type Parser interface {
	Parse(tx Transaction) []*domain.TradeEvent
}

// TradeDecoder parses trade events from multiple DEX programs.
type TradeDecoder struct {
	parsers map[string]Parser // programID -> parser
}

// NewTradeDecoder creates a decoder with default parsers registered.
func NewTradeDecoder() *TradeDecoder {
	d := &TradeDecoder{
		parsers: make(map[string]Parser),
	}

	d.RegisterParser(RaydiumAMMV4, NewRaydiumParser())
	d.RegisterParser(PumpFun, NewPumpFunParser())

	return d
}

// RegisterParser registers a parser for a specific program ID.
func (d *TradeDecoder) RegisterParser(programID string, parser Parser) {
	d.parsers[programID] = parser
}

// ParseTransaction decodes all trade events in a transaction.
// Failed transactions and transactions whose fee payer is not an on-curve
// wallet produce no events.
func (d *TradeDecoder) ParseTransaction(tx Transaction) []*domain.TradeEvent {
	if tx.Err != nil {
		return nil
	}

	wallet := feePayer(tx.AccountKeys)
	if wallet == "" {
		return nil
	}

	var events []*domain.TradeEvent
	for _, parser := range d.parsers {
		events = append(events, parser.Parse(tx)...)
	}

	for _, ev := range events {
		ev.Wallet = wallet
	}

	// Sort by timestamp then mint for deterministic ordering
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].TokenMint < events[j].TokenMint
	})

	return events
}
