package session

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/observability"
)

// DefaultGracePeriod is how long a session keeps recording after the
// tracked wallet's first sell before it is stopped.
const DefaultGracePeriod = 10 * time.Second

// DefaultMaxSessionDuration caps a session's lifetime when the caller does
// not supply a positive maximum.
const DefaultMaxSessionDuration = 5 * time.Minute

// FilterSink receives the full watched-token set whenever it changes.
// Pushes happen under the registry mutex so they arrive in state order;
// the sink must not block (the stream client's UpdateFilter only records
// the desired set and wakes its own apply loop).
type FilterSink interface {
	UpdateFilter(tokens []string)
}

// Manager owns all live sessions, the token reverse index, and the
// subscribed-token set. Every operation is serialized under one mutex;
// timer callbacks go through the same path as stream dispatch.
type Manager struct {
	clk     clock.Clock
	sink    FilterSink
	flusher *Flusher
	grace   time.Duration

	mu         sync.Mutex
	sessions   map[string]*Session
	byMint     map[string]map[string]struct{}
	subscribed map[string]struct{}
}

// NewManager creates a session manager. A zero grace falls back to
// DefaultGracePeriod.
func NewManager(clk clock.Clock, sink FilterSink, flusher *Flusher, grace time.Duration) *Manager {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Manager{
		clk:        clk,
		sink:       sink,
		flusher:    flusher,
		grace:      grace,
		sessions:   make(map[string]*Session),
		byMint:     make(map[string]map[string]struct{}),
		subscribed: make(map[string]struct{}),
	}
}

// StartMonitoring opens a session for the wallet's first buy of a token.
// The returned key identifies the session. Starting an already-present key
// is a no-op returning the existing key. If seed is non-nil the session is
// seeded with a synthetic buy observation at the start instant.
func (m *Manager) StartMonitoring(wallet, mint, pool string, maxDurationSec int, seed *domain.PriceSnapshot) string {
	startMs := m.clk.Now().UnixMilli()
	key := sessionKey(wallet, mint, startMs)

	m.mu.Lock()

	if _, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return key
	}

	s := &Session{
		Key:     key,
		Wallet:  wallet,
		Mint:    mint,
		Pool:    pool,
		StartMs: startMs,
		seen:    make(map[string]struct{}),
	}

	if seed != nil {
		s.firstBuy = &domain.SessionEvent{
			TimestampMs:  startMs,
			PriceSol:     seed.PriceSol,
			PriceUsd:     seed.PriceUsd,
			MarketCapUsd: seed.MarketCapUsd,
			Pool:         pool,
			TxSignature:  seed.Signature,
			Side:         domain.TradeSideBuy,
		}
		s.firstBuySig = seed.Signature
		if seed.Signature != "" {
			s.seen[seed.Signature] = struct{}{}
		}
	}

	maxDuration := time.Duration(maxDurationSec) * time.Second
	if maxDurationSec <= 0 {
		maxDuration = DefaultMaxSessionDuration
	}
	s.maxTimer = m.clk.AfterFunc(maxDuration, func() {
		m.stopSession(key, domain.StopReasonMaxDuration)
	})

	m.sessions[key] = s

	keys, live := m.byMint[mint]
	if !live {
		keys = make(map[string]struct{})
		m.byMint[mint] = keys
	}
	keys[key] = struct{}{}

	if _, ok := m.subscribed[mint]; !ok {
		m.subscribed[mint] = struct{}{}
		m.sink.UpdateFilter(m.subscribedLocked())
	}

	observability.RecordSessionStarted()
	observability.UpdateSessionGauges(len(m.sessions), len(m.subscribed))

	m.mu.Unlock()

	log.Printf("[session] started %s (max %s)", key, maxDuration)
	return key
}

// SignalSell marks the tracked wallet's first sell for a token. It targets
// the most recently started non-stopped session for the pair, appends a
// sell observation, cancels the max-duration timer, and arms the grace
// timer. Unknown pairs are a logged no-op.
func (m *Manager) SignalSell(wallet, mint string, snap *domain.PriceSnapshot) {
	m.mu.Lock()

	var target *Session
	for key := range m.byMint[mint] {
		s := m.sessions[key]
		if s == nil || s.Wallet != wallet || s.stopRequested {
			continue
		}
		if target == nil || s.StartMs > target.StartMs {
			target = s
		}
	}

	if target == nil {
		m.mu.Unlock()
		log.Printf("[session] sell signal for unknown pair %s/%s ignored", wallet, mint)
		return
	}

	sellMs := m.clk.Now().UnixMilli()
	target.stopRequested = true
	target.sellMs = sellMs

	sell := &domain.SessionEvent{
		TimestampMs: sellMs,
		Pool:        target.Pool,
		Side:        domain.TradeSideSell,
	}
	if snap != nil {
		sell.PriceSol = snap.PriceSol
		sell.PriceUsd = snap.PriceUsd
		sell.MarketCapUsd = snap.MarketCapUsd
		sell.TxSignature = snap.Signature
	} else if last := target.lastPrice(); last != nil {
		sell.PriceSol = last.PriceSol
		sell.PriceUsd = last.PriceUsd
		sell.MarketCapUsd = last.MarketCapUsd
	}

	target.firstSellSig = sell.TxSignature
	if sell.TxSignature != "" {
		target.seen[sell.TxSignature] = struct{}{}
	}
	target.events = append(target.events, sell)

	target.maxTimer.Stop()
	key := target.Key
	target.graceTimer = m.clk.AfterFunc(m.grace, func() {
		m.stopSession(key, domain.StopReasonSellGrace)
	})

	m.mu.Unlock()
	log.Printf("[session] sell signalled for %s, stopping in %s", key, m.grace)
}

// Dispatch routes a priced trade event to every session watching its token.
// Duplicate signatures and events at or before a session's start are
// dropped per session. Stale index entries are pruned in passing.
func (m *Manager) Dispatch(ev *domain.TradeEvent, priceUsd, marketCapUsd float64) {
	m.mu.Lock()

	keys, ok := m.byMint[ev.TokenMint]
	if !ok {
		m.mu.Unlock()
		return
	}

	var stale []string
	for key := range keys {
		s := m.sessions[key]
		if s == nil {
			stale = append(stale, key)
			continue
		}

		switch s.record(&domain.SessionEvent{
			TimestampMs:  ev.Timestamp,
			Slot:         ev.Slot,
			PriceSol:     ev.PriceSol,
			PriceUsd:     priceUsd,
			MarketCapUsd: marketCapUsd,
			Pool:         ev.Pool,
			TxSignature:  ev.Signature,
			Side:         ev.Side,
		}) {
		case recorded:
			observability.RecordEventDispatched()
		case duplicateSignature:
			observability.RecordDuplicateEvent()
		case staleTimestamp:
			observability.RecordStaleEvent()
		}
	}

	pruned := false
	for _, key := range stale {
		delete(keys, key)
	}
	if len(keys) == 0 {
		delete(m.byMint, ev.TokenMint)
		if _, ok := m.subscribed[ev.TokenMint]; ok {
			delete(m.subscribed, ev.TokenMint)
			m.sink.UpdateFilter(m.subscribedLocked())
			pruned = true
		}
	}

	m.mu.Unlock()

	if pruned {
		log.Printf("[session] pruned stale index entries for %s", ev.TokenMint)
	}
}

// StopSession stops one session immediately, flushing its buffer.
func (m *Manager) StopSession(key string) {
	m.stopSession(key, domain.StopReasonManual)
}

// IsMonitoring reports whether an active (non-stopped) session exists for
// the pair. Sessions inside their post-sell grace window do not count, so
// a re-buy during the grace window starts a fresh session.
func (m *Manager) IsMonitoring(wallet, mint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.byMint[mint] {
		s := m.sessions[key]
		if s != nil && s.Wallet == wallet && !s.stopRequested {
			return true
		}
	}
	return false
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SubscribedTokens returns the sorted set of tokens with at least one
// live session.
func (m *Manager) SubscribedTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribedLocked()
}

// Shutdown cancels all timers and abandons in-flight sessions without
// flushing them.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()

	n := len(m.sessions)
	for _, s := range m.sessions {
		s.cancelTimers()
	}
	m.sessions = make(map[string]*Session)
	m.byMint = make(map[string]map[string]struct{})
	m.subscribed = make(map[string]struct{})
	m.sink.UpdateFilter(nil)
	observability.UpdateSessionGauges(0, 0)

	m.mu.Unlock()

	if n > 0 {
		log.Printf("[session] shutdown: abandoned %d in-flight sessions", n)
	}
}

// stopSession removes a session and hands its buffer to the flusher. The
// flush runs after the lock is released so timer callbacks stay short.
func (m *Manager) stopSession(key, reason string) {
	m.mu.Lock()

	s, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		log.Printf("[session] stop of unknown session %s ignored", key)
		return
	}

	s.cancelTimers()
	delete(m.sessions, key)

	if keys, ok := m.byMint[s.Mint]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.byMint, s.Mint)
			delete(m.subscribed, s.Mint)
			m.sink.UpdateFilter(m.subscribedLocked())
		}
	}

	in := &FlushInput{
		Wallet:       s.Wallet,
		TokenMint:    s.Mint,
		Pool:         s.Pool,
		StartedAtMs:  s.StartMs,
		StoppedAtMs:  m.clk.Now().UnixMilli(),
		SellAtMs:     s.sellMs,
		StopReason:   reason,
		GraceMs:      m.grace.Milliseconds(),
		FirstBuy:     s.firstBuy,
		FirstBuySig:  s.firstBuySig,
		FirstSellSig: s.firstSellSig,
		Events:       s.events,
	}

	observability.RecordSessionStopped(reason)
	observability.UpdateSessionGauges(len(m.sessions), len(m.subscribed))

	m.mu.Unlock()

	log.Printf("[session] stopped %s (%s, %d events)", key, reason, len(in.Events))
	m.flusher.Flush(context.Background(), in)
}

func (m *Manager) subscribedLocked() []string {
	tokens := make([]string, 0, len(m.subscribed))
	for mint := range m.subscribed {
		tokens = append(tokens, mint)
	}
	sort.Strings(tokens)
	return tokens
}
