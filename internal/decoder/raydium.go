package decoder

import (
	"encoding/base64"
	"encoding/binary"
	"regexp"

	"github.com/mr-tron/base58"

	"solana-wallet-monitor/internal/domain"
)

// RaydiumParser parses Raydium AMM v4 swaps from ray_log entries.
type RaydiumParser struct {
	// ray_log pattern: base64 encoded data after "ray_log: "
	rayLogPattern *regexp.Regexp
}

// NewRaydiumParser creates a new Raydium parser.
func NewRaydiumParser() *RaydiumParser {
	return &RaydiumParser{
		rayLogPattern: regexp.MustCompile(`ray_log: ([A-Za-z0-9+/=]+)`),
	}
}

// Compile-time interface check.
var _ Parser = (*RaydiumParser)(nil)

// Raydium AMM v4 swap account layout: the AMM ID (pool address) is the
// second account of the instruction.
const raydiumPoolIndex = 1

// ray_log swap layout:
// discriminator(1) + ammId(32) + inputMint(32) + outputMint(32) + amountIn(8) + amountOut(8)
const (
	rayLogInputMintOffset  = 1 + 32
	rayLogOutputMintOffset = 1 + 32 + 32
	rayLogAmountInOffset   = 1 + 32 + 32 + 32
	rayLogAmountOutOffset  = 1 + 32 + 32 + 32 + 8
	rayLogSwapLen          = 1 + 32 + 32 + 32 + 8 + 8
)

// Parse extracts swap events from ray_log entries in the transaction logs.
func (p *RaydiumParser) Parse(tx Transaction) []*domain.TradeEvent {
	var events []*domain.TradeEvent

	for _, log := range tx.Logs {
		matches := p.rayLogPattern.FindStringSubmatch(log)
		if matches == nil {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(matches[1])
		if err != nil {
			continue
		}

		if !isSwapLog(data) || len(data) < rayLogSwapLen {
			continue
		}

		inputMint := base58.Encode(data[rayLogInputMintOffset:rayLogOutputMintOffset])
		outputMint := base58.Encode(data[rayLogOutputMintOffset:rayLogAmountInOffset])
		amountIn := readUint64LE(data, rayLogAmountInOffset)
		amountOut := readUint64LE(data, rayLogAmountOutOffset)

		// Only SOL pairs carry a SOL-denominated price. SOL in = buy of the
		// other mint, SOL out = sell.
		var mint, side string
		switch {
		case inputMint == WSOL && outputMint != WSOL:
			mint = outputMint
			side = domain.TradeSideBuy
		case outputMint == WSOL && inputMint != WSOL:
			mint = inputMint
			side = domain.TradeSideSell
		default:
			continue
		}

		var pool string
		if len(tx.AccountKeys) > raydiumPoolIndex {
			pool = tx.AccountKeys[raydiumPoolIndex]
		}

		events = append(events, &domain.TradeEvent{
			Signature: tx.Signature,
			TokenMint: mint,
			Pool:      pool,
			Side:      side,
			AmountIn:  float64(amountIn),
			AmountOut: float64(amountOut),
			Slot:      tx.Slot,
			Timestamp: tx.Timestamp,
		})
	}

	return events
}

// isSwapLog checks if ray_log data represents a swap instruction.
func isSwapLog(data []byte) bool {
	if len(data) < 1 {
		return false
	}
	// Raydium discriminators: 0x09 = SwapBaseIn, 0x0b = SwapBaseOut (newer versions)
	// Also 0x0d, 0x0e for some instruction variants
	disc := data[0]
	return disc == 0x09 || disc == 0x0b || disc == 0x0d || disc == 0x0e
}

// readUint64LE reads a little-endian uint64 from data at offset.
func readUint64LE(data []byte, offset int) uint64 {
	if offset+8 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint64(data[offset:])
}
