// Package pricing derives token prices and market caps from raw trade data.
// All functions are pure; callers that get ok=false must skip the
// observation rather than treat it as a zero price.
package pricing

// Lamports per SOL.
const LamportsPerSol = 1e9

// Quote is a fully derived price observation.
type Quote struct {
	PriceSol     float64
	PriceUsd     float64
	MarketCapUsd float64
}

// FromReserves derives the token price in SOL from pool reserves.
// Returns ok=false when either reserve is zero or negative.
func FromReserves(tokenReserve, solReserve float64, tokenDecimals int) (float64, bool) {
	if tokenReserve <= 0 || solReserve <= 0 {
		return 0, false
	}

	tokenAmount := tokenReserve / pow10(tokenDecimals)
	solAmount := solReserve / LamportsPerSol
	if tokenAmount <= 0 {
		return 0, false
	}

	return solAmount / tokenAmount, true
}

// FromAmounts derives the execution price in SOL of a single trade from its
// raw SOL and token legs. Returns ok=false when either leg is missing.
func FromAmounts(solLamports, tokenRaw float64, tokenDecimals int) (float64, bool) {
	if solLamports <= 0 || tokenRaw <= 0 {
		return 0, false
	}

	tokenAmount := tokenRaw / pow10(tokenDecimals)
	if tokenAmount <= 0 {
		return 0, false
	}

	return (solLamports / LamportsPerSol) / tokenAmount, true
}

// Compute converts a SOL-denominated price into a full quote using the
// reference SOL/USD price and the token's circulating supply.
func Compute(priceSol, solPriceUsd, supply float64) Quote {
	priceUsd := priceSol * solPriceUsd
	return Quote{
		PriceSol:     priceSol,
		PriceUsd:     priceUsd,
		MarketCapUsd: priceUsd * supply,
	}
}

func pow10(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}
