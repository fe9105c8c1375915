package domain

// SessionEvent is a priced trade observation buffered by a monitoring
// session. Events are append-only and deduplicated by signature.
type SessionEvent struct {
	TimestampMs  int64
	Slot         int64
	PriceSol     float64
	PriceUsd     float64
	MarketCapUsd float64
	Pool         string
	TxSignature  string
	Side         string // "buy" | "sell"
}

// PeakRecord is the highest-priced observation within a session window.
// A zero TimestampMs means no observation existed for the window.
type PeakRecord struct {
	PriceSol     float64
	PriceUsd     float64
	MarketCapUsd float64
	TimestampMs  int64
}

// Session stop reasons.
const (
	StopReasonSellGrace   = "sell_grace"
	StopReasonMaxDuration = "max_duration"
	StopReasonManual      = "manual"
)

// SessionPeaks is the persisted outcome of one monitoring session.
// Corresponds to session_peaks table in PostgreSQL.
type SessionPeaks struct {
	SessionID      string // deterministic hash of (wallet, mint, started_at)
	Wallet         string
	TokenMint      string
	Pool           string
	StartedAtMs    int64
	StoppedAtMs    int64
	SellAtMs       int64 // 0 when the session ended without a sell
	StopReason     string
	PreSell        PeakRecord
	PostSell       PeakRecord
	BuysBeforeSell int
	BuysAfterSell  int
	CreatedAt      int64 // record creation timestamp (ms)
}

// TimeseriesPoint is one persisted observation of a session's buffer.
type TimeseriesPoint struct {
	SessionID    string
	Wallet       string
	TokenMint    string
	TimestampMs  int64
	Slot         int64
	PriceSol     float64
	PriceUsd     float64
	MarketCapUsd float64
	Pool         string
	TxSignature  string
	Side         string
}
