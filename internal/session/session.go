// Package session implements per-(wallet, token) monitoring sessions over a
// shared multiplexed transaction subscription. A session opens on a tracked
// wallet's first buy of a token, buffers priced trade events with signature
// dedup and start-time filtering, and closes either a fixed grace window
// after the wallet's first sell or when its maximum duration elapses.
package session

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"solana-wallet-monitor/internal/domain"
)

// Session is the monitoring state for one (wallet, token, start instant)
// triple. It is owned by the Manager and mutated only under the Manager's
// mutex; the events buffer is exclusively its own and is consumed exactly
// once by the flusher when the session stops.
type Session struct {
	Key     string
	Wallet  string
	Mint    string
	Pool    string
	StartMs int64

	// stopRequested is set exactly once, by the sell signal.
	stopRequested bool
	sellMs        int64

	firstBuySig  string
	firstSellSig string

	// firstBuy is the synthesized buy event at StartMs. It is kept out of
	// the events buffer so every buffered event is strictly after StartMs;
	// the flusher uses it as the pre-sell peak fallback.
	firstBuy *domain.SessionEvent

	seen   map[string]struct{}
	events []*domain.SessionEvent

	maxTimer   *clock.Timer
	graceTimer *clock.Timer
}

// sessionKey builds the composite session identity.
func sessionKey(wallet, mint string, startMs int64) string {
	return fmt.Sprintf("%s|%s|%d", wallet, mint, startMs)
}

// record appends an event if its signature is new and it is strictly after
// the session start. Returns what happened for metrics accounting.
type recordResult int

const (
	recorded recordResult = iota
	duplicateSignature
	staleTimestamp
)

func (s *Session) record(ev *domain.SessionEvent) recordResult {
	if _, ok := s.seen[ev.TxSignature]; ok {
		return duplicateSignature
	}
	if ev.TimestampMs <= s.StartMs {
		return staleTimestamp
	}
	s.seen[ev.TxSignature] = struct{}{}
	s.events = append(s.events, ev)
	return recorded
}

// lastPrice returns the most recent observation, falling back to the
// synthesized first buy.
func (s *Session) lastPrice() *domain.SessionEvent {
	if len(s.events) > 0 {
		return s.events[len(s.events)-1]
	}
	return s.firstBuy
}

// cancelTimers stops both timers. Safe to call more than once.
func (s *Session) cancelTimers() {
	if s.maxTimer != nil {
		s.maxTimer.Stop()
	}
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
}
