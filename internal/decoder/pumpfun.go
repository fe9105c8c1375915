package decoder

import (
	"regexp"
	"strconv"
	"strings"

	"solana-wallet-monitor/internal/domain"
)

// PumpFunParser parses pump.fun bonding curve trades from program logs.
type PumpFunParser struct {
	buyPattern  *regexp.Regexp
	sellPattern *regexp.Regexp
	mintPattern *regexp.Regexp

	tokenAmountPattern *regexp.Regexp
	solAmountPattern   *regexp.Regexp
}

// NewPumpFunParser creates a new pump.fun parser.
func NewPumpFunParser() *PumpFunParser {
	return &PumpFunParser{
		buyPattern:         regexp.MustCompile(`Program log: Instruction: Buy`),
		sellPattern:        regexp.MustCompile(`Program log: Instruction: Sell`),
		mintPattern:        regexp.MustCompile(`mint[=:]\s*([A-Za-z0-9]+)`),
		tokenAmountPattern: regexp.MustCompile(`(?:amount|token_amount)[=:]?\s*(\d+)`),
		solAmountPattern:   regexp.MustCompile(`sol_amount[=:]?\s*(\d+)`),
	}
}

// Compile-time interface check.
var _ Parser = (*PumpFunParser)(nil)

// Parse extracts buy/sell events from pump.fun program log sections.
// Instruction kind is detected first; mint and amounts are collected from
// the log lines that follow, and the event is emitted when the program
// section closes.
func (p *PumpFunParser) Parse(tx Transaction) []*domain.TradeEvent {
	var events []*domain.TradeEvent

	inPumpFun := false
	var side, mint string
	var tokenAmount, solAmount uint64

	flush := func() {
		if side != "" && mint != "" {
			ev := &domain.TradeEvent{
				Signature: tx.Signature,
				TokenMint: mint,
				Side:      side,
				Slot:      tx.Slot,
				Timestamp: tx.Timestamp,
			}
			// Buys spend SOL for tokens, sells the reverse
			if side == domain.TradeSideBuy {
				ev.AmountIn = float64(solAmount)
				ev.AmountOut = float64(tokenAmount)
			} else {
				ev.AmountIn = float64(tokenAmount)
				ev.AmountOut = float64(solAmount)
			}
			events = append(events, ev)
		}
		side, mint = "", ""
		tokenAmount, solAmount = 0, 0
	}

	for _, log := range tx.Logs {
		if strings.Contains(log, "Program "+PumpFun+" invoke") {
			inPumpFun = true
			side, mint = "", ""
			tokenAmount, solAmount = 0, 0
			continue
		}

		if strings.Contains(log, "Program "+PumpFun+" success") {
			if inPumpFun {
				flush()
			}
			inPumpFun = false
			continue
		}
		if strings.Contains(log, "Program "+PumpFun+" failed") {
			inPumpFun = false
			side, mint = "", ""
			tokenAmount, solAmount = 0, 0
			continue
		}

		if !inPumpFun {
			continue
		}

		switch {
		case p.buyPattern.MatchString(log):
			side = domain.TradeSideBuy
		case p.sellPattern.MatchString(log):
			side = domain.TradeSideSell
		}

		if m := p.mintPattern.FindStringSubmatch(log); m != nil {
			mint = m[1]
		}

		// sol_amount is checked first: the generic amount pattern would
		// also match it
		if m := p.solAmountPattern.FindStringSubmatch(log); m != nil {
			if parsed, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				solAmount = parsed
			}
		} else if m := p.tokenAmountPattern.FindStringSubmatch(log); m != nil {
			if parsed, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				tokenAmount = parsed
			}
		}
	}

	return events
}
