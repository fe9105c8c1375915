package session

import (
	"context"
	"log"

	"github.com/benbjohnson/clock"

	"solana-wallet-monitor/internal/domain"
	"solana-wallet-monitor/internal/idhash"
	"solana-wallet-monitor/internal/observability"
	"solana-wallet-monitor/internal/storage"
)

// FlushInput is one stopped session's buffer plus the metadata the flusher
// needs to derive peak statistics. The events slice is owned by the flusher
// after handoff.
type FlushInput struct {
	Wallet      string
	TokenMint   string
	Pool        string
	StartedAtMs int64
	StoppedAtMs int64
	SellAtMs    int64 // 0 when the session ended without a sell
	StopReason  string
	GraceMs     int64

	// FirstBuy is the synthesized buy at StartedAtMs, kept outside the
	// buffer. Nil when the session started without a price seed.
	FirstBuy     *domain.SessionEvent
	FirstBuySig  string
	FirstSellSig string

	Events []*domain.SessionEvent
}

// Flusher derives pre/post-sell peak statistics from a stopped session's
// buffer and persists the time series plus the peaks record. Both writes
// are best-effort: failures are logged, never retried, and never re-open
// the session.
type Flusher struct {
	timeseries storage.TimeseriesStore
	peaks      storage.SessionPeaksStore
	clk        clock.Clock
}

// NewFlusher creates a flusher over the two persistence stores.
func NewFlusher(timeseries storage.TimeseriesStore, peaks storage.SessionPeaksStore, clk clock.Clock) *Flusher {
	return &Flusher{timeseries: timeseries, peaks: peaks, clk: clk}
}

// Flush computes and persists the outcome of one session.
func (f *Flusher) Flush(ctx context.Context, in *FlushInput) {
	sessionID := idhash.ComputeSessionID(in.Wallet, in.TokenMint, in.StartedAtMs)

	events := dedupAndFilter(in.Events, in.StartedAtMs)
	pre, post := partition(events, in.SellAtMs, in.GraceMs)

	prePeak := peakOf(pre)
	if prePeak.TimestampMs == 0 && in.FirstBuy != nil {
		prePeak = toPeak(in.FirstBuy)
	}
	// No sell means no post-sell window at all
	postPeak := peakOf(post)

	peaks := &domain.SessionPeaks{
		SessionID:      sessionID,
		Wallet:         in.Wallet,
		TokenMint:      in.TokenMint,
		Pool:           in.Pool,
		StartedAtMs:    in.StartedAtMs,
		StoppedAtMs:    in.StoppedAtMs,
		SellAtMs:       in.SellAtMs,
		StopReason:     in.StopReason,
		PreSell:        prePeak,
		PostSell:       postPeak,
		BuysBeforeSell: countBuys(pre, in.FirstBuySig, in.FirstSellSig),
		BuysAfterSell:  countBuys(post, in.FirstBuySig, in.FirstSellSig),
		CreatedAt:      f.clk.Now().UnixMilli(),
	}

	points := make([]*domain.TimeseriesPoint, 0, len(events)+1)
	if in.FirstBuy != nil {
		points = append(points, toPoint(sessionID, in, in.FirstBuy))
	}
	for _, ev := range events {
		points = append(points, toPoint(sessionID, in, ev))
	}

	if len(points) > 0 {
		if err := f.timeseries.InsertBatch(ctx, points); err != nil {
			log.Printf("[flusher] timeseries write failed for %s: %v", sessionID, err)
			observability.RecordFlushError("timeseries")
		}
	}

	if err := f.peaks.Insert(ctx, peaks); err != nil {
		log.Printf("[flusher] peaks write failed for %s: %v", sessionID, err)
		observability.RecordFlushError("session_peaks")
		return
	}
	observability.RecordSessionFlushed()
}

// dedupAndFilter drops repeated signatures (first occurrence wins) and any
// event at or before the session start. A defensive re-check: the session
// enforces the same rules while buffering.
func dedupAndFilter(events []*domain.SessionEvent, startMs int64) []*domain.SessionEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]*domain.SessionEvent, 0, len(events))
	for _, ev := range events {
		if ev.TimestampMs <= startMs {
			continue
		}
		if ev.TxSignature != "" {
			if _, dup := seen[ev.TxSignature]; dup {
				continue
			}
			seen[ev.TxSignature] = struct{}{}
		}
		out = append(out, ev)
	}
	return out
}

// partition splits events around the first-sell timestamp. Pre-sell is
// strictly before the sell; post-sell runs from the sell through the grace
// window. Without a sell everything is pre-sell.
func partition(events []*domain.SessionEvent, sellMs, graceMs int64) (pre, post []*domain.SessionEvent) {
	if sellMs == 0 {
		return events, nil
	}
	for _, ev := range events {
		switch {
		case ev.TimestampMs < sellMs:
			pre = append(pre, ev)
		case ev.TimestampMs <= sellMs+graceMs:
			post = append(post, ev)
		}
	}
	return pre, post
}

// peakOf returns the maximum-priceUsd event as a peak record; ties keep
// the earliest. A zero record means the window was empty.
func peakOf(events []*domain.SessionEvent) domain.PeakRecord {
	var peak domain.PeakRecord
	for _, ev := range events {
		if peak.TimestampMs == 0 || ev.PriceUsd > peak.PriceUsd {
			peak = toPeak(ev)
		}
	}
	return peak
}

func toPeak(ev *domain.SessionEvent) domain.PeakRecord {
	return domain.PeakRecord{
		PriceSol:     ev.PriceSol,
		PriceUsd:     ev.PriceUsd,
		MarketCapUsd: ev.MarketCapUsd,
		TimestampMs:  ev.TimestampMs,
	}
}

// countBuys counts buy events excluding the wallet's own pivot
// transactions.
func countBuys(events []*domain.SessionEvent, firstBuySig, firstSellSig string) int {
	n := 0
	for _, ev := range events {
		if ev.Side != domain.TradeSideBuy {
			continue
		}
		if ev.TxSignature != "" && (ev.TxSignature == firstBuySig || ev.TxSignature == firstSellSig) {
			continue
		}
		n++
	}
	return n
}

func toPoint(sessionID string, in *FlushInput, ev *domain.SessionEvent) *domain.TimeseriesPoint {
	return &domain.TimeseriesPoint{
		SessionID:    sessionID,
		Wallet:       in.Wallet,
		TokenMint:    in.TokenMint,
		TimestampMs:  ev.TimestampMs,
		Slot:         ev.Slot,
		PriceSol:     ev.PriceSol,
		PriceUsd:     ev.PriceUsd,
		MarketCapUsd: ev.MarketCapUsd,
		Pool:         ev.Pool,
		TxSignature:  ev.TxSignature,
		Side:         ev.Side,
	}
}
