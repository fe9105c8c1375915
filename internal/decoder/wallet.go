package decoder

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// isOnCurve reports whether a 32-byte public key lies on the ed25519 curve.
// Program-derived addresses are off-curve by construction, so this
// distinguishes signing wallets from pool PDAs.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// IsWalletAddress reports whether addr is a base58-encoded on-curve pubkey.
func IsWalletAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	return isOnCurve(raw)
}

// feePayer returns the transaction fee payer: the first account key,
// provided it is an on-curve wallet. Returns "" otherwise.
func feePayer(accountKeys []string) string {
	if len(accountKeys) == 0 {
		return ""
	}
	if !IsWalletAddress(accountKeys[0]) {
		return ""
	}
	return accountKeys[0]
}
