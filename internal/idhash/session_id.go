package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSessionID computes a deterministic session_id using SHA256.
// Formula: SHA256(wallet|mint|started_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeSessionID(wallet string, mint string, startedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", wallet, mint, startedAtMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
