package domain

// TradeEvent represents a single decoded DEX trade observed on the
// transaction stream.
type TradeEvent struct {
	Signature string  // Solana transaction signature
	TokenMint string  // traded token mint address
	Pool      string  // pool / bonding curve address (may be empty)
	Wallet    string  // fee payer wallet that signed the transaction
	Side      string  // "buy" | "sell"
	PriceSol  float64 // token price in SOL derived from the trade
	AmountIn  float64 // raw input amount
	AmountOut float64 // raw output amount
	Slot      int64   // Solana slot number
	Timestamp int64   // Unix timestamp in milliseconds
}

// Trade side constants
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// PriceSnapshot carries an externally computed price used to seed a
// monitoring session at start or to stamp a sell signal.
type PriceSnapshot struct {
	PriceSol     float64
	PriceUsd     float64
	MarketCapUsd float64
	Signature    string // transaction that produced the snapshot, if known
}

// TokenSupply is the circulating supply of a token together with its
// on-chain decimals.
type TokenSupply struct {
	Mint      string
	Supply    float64 // decimal-adjusted circulating supply
	Decimals  int
	UpdatedAt int64 // Unix timestamp in milliseconds
}
