package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"solana-wallet-monitor/internal/decoder"
	"solana-wallet-monitor/internal/observability"
	"solana-wallet-monitor/internal/session"
	"solana-wallet-monitor/internal/storage"
	chstore "solana-wallet-monitor/internal/storage/clickhouse"
	"solana-wallet-monitor/internal/storage/memory"
	"solana-wallet-monitor/internal/storage/migrations"
	pgstore "solana-wallet-monitor/internal/storage/postgres"
	"solana-wallet-monitor/internal/stream"
	"solana-wallet-monitor/internal/tracker"
)

func main() {
	// Parse flags
	wsEndpoint := flag.String("ws-endpoint", "", "Transaction stream WebSocket endpoint")
	accessToken := flag.String("access-token", "", "Stream access token (or STREAM_ACCESS_TOKEN env)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	wallets := flag.String("wallets", "", "Comma-separated wallet addresses to track")
	maxDuration := flag.Int("max-session-duration", 300, "Maximum session lifetime in seconds")
	grace := flag.Duration("grace", session.DefaultGracePeriod, "Post-sell grace window")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	token := *accessToken
	if token == "" {
		token = os.Getenv("STREAM_ACCESS_TOKEN")
	}

	trackedWallets := splitWallets(*wallets)
	if len(trackedWallets) == 0 {
		logger.Fatal("No wallets specified. Use --wallets")
	}
	for _, w := range trackedWallets {
		if !decoder.IsWalletAddress(w) {
			logger.Fatalf("Invalid wallet address: %s", w)
		}
	}
	logger.Printf("Tracking wallets: %v", trackedWallets)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, *wsEndpoint, token, *postgresDSN, *clickhouseDSN,
		trackedWallets, *maxDuration, *grace, *useMemory)

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// splitWallets parses the comma-separated wallet list.
func splitWallets(s string) []string {
	var wallets []string
	for _, w := range strings.Split(s, ",") {
		w = strings.TrimSpace(w)
		if w != "" {
			wallets = append(wallets, w)
		}
	}
	return wallets
}

// run wires the stores, session manager, stream client, and tracker, then
// blocks until ctx is cancelled.
func run(ctx context.Context, logger *log.Logger, wsEndpoint, accessToken,
	postgresDSN, clickhouseDSN string, trackedWallets []string,
	maxDurationSec int, grace time.Duration, useMemory bool) error {

	if wsEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}
	if accessToken == "" {
		return fmt.Errorf("--access-token (or STREAM_ACCESS_TOKEN) is required")
	}
	if !useMemory && (postgresDSN == "" || clickhouseDSN == "") {
		return fmt.Errorf("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create stores (use interfaces)
	var solPriceStore storage.SolPriceStore = memory.NewSolPriceStore()
	var supplyStore storage.TokenSupplyStore = memory.NewTokenSupplyStore()
	var peaksStore storage.SessionPeaksStore = memory.NewSessionPeaksStore()
	var timeseriesStore storage.TimeseriesStore = memory.NewTimeseriesStore()

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}

		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer chConn.Close()

		solPriceStore = pgstore.NewSolPriceStore(pool)
		supplyStore = pgstore.NewTokenSupplyStore(pool)
		peaksStore = pgstore.NewSessionPeaksStore(pool)
		timeseriesStore = chstore.NewTimeseriesStore(chConn)
	}

	// Create stream client; the session manager pushes filter updates to it
	client, err := stream.NewClient(ctx, wsEndpoint, accessToken, nil)
	if err != nil {
		return fmt.Errorf("create stream client: %w", err)
	}
	defer client.Close()

	clk := clock.New()
	flusher := session.NewFlusher(timeseriesStore, peaksStore, clk)
	manager := session.NewManager(clk, client, flusher, grace)

	trk := tracker.New(manager, decoder.NewTradeDecoder(), solPriceStore, supplyStore, clk,
		tracker.Config{
			TrackedWallets:        trackedWallets,
			MaxSessionDurationSec: maxDurationSec,
		})

	logger.Println("Starting wallet monitor...")
	trk.Run(ctx, client.Notifications())

	// In-flight sessions are abandoned on shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.Shutdown(shutdownCtx)

	return ctx.Err()
}
