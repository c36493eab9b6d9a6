// Package main runs the Dutch auction HTTP server: the auction service over
// the configured stores, the collaborator ledger and a system or cluster clock.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-dutch-auction/internal/address"
	"solana-dutch-auction/internal/api"
	"solana-dutch-auction/internal/auction"
	"solana-dutch-auction/internal/config"
	ledgermem "solana-dutch-auction/internal/ledger/memory"
	"solana-dutch-auction/internal/logger"
	"solana-dutch-auction/internal/solana"
	"solana-dutch-auction/internal/storage"
	chstore "solana-dutch-auction/internal/storage/clickhouse"
	"solana-dutch-auction/internal/storage/memory"
	"solana-dutch-auction/internal/storage/migrations"
	pgstore "solana-dutch-auction/internal/storage/postgres"
)

// stores holds the storage implementations and their health checks.
type stores struct {
	auctions storage.AuctionStore
	curves   storage.PriceCurveStore
	checks   map[string]api.HealthCheck
	close    func()
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("AUCTION_CONFIG"), "Path to YAML config file")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides config)")
	backend := flag.String("storage", "", "Storage backend: memory or postgres (overrides config)")
	clockSource := flag.String("clock", "", "Clock source: system or chain (overrides config)")
	rpcURL := flag.String("rpc-url", "", "Solana RPC HTTP endpoint (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg, *httpAddr, *backend, *clockSource, *rpcURL, *logLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func applyFlags(cfg *config.Config, httpAddr, backend, clockSource, rpcURL, logLevel string) {
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if clockSource != "" {
		cfg.Solana.Clock = clockSource
	}
	if rpcURL != "" {
		cfg.Solana.RPCURL = rpcURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	programID, err := address.ParsePublicKey(cfg.Solana.ProgramID)
	if err != nil {
		return fmt.Errorf("program id: %w", err)
	}

	st, err := createStores(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer st.close()

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL,
		solana.WithTimeout(cfg.Solana.Timeout),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
		solana.WithCommitment(cfg.Solana.Commitment),
	)

	var clock auction.Clock = auction.SystemClock{}
	if cfg.Solana.Clock == config.ClockChain {
		clock = solana.NewChainClock(rpc)
		st.checks["solana"] = func(ctx context.Context) error {
			_, err := rpc.GetSlot(ctx)
			return err
		}
	}

	ledger := ledgermem.New()
	svc := auction.NewService(st.auctions, ledger, clock, programID,
		auction.WithCurveStore(st.curves),
		auction.WithCurveStep(cfg.Auction.CurveStep),
		auction.WithLogger(log.Named("auction")),
	)

	opts := []api.Option{
		api.WithLogger(log.Named("http")),
		api.WithFeed(cfg.Feed.Interval, cfg.Feed.WriteTimeout),
	}
	for name, check := range st.checks {
		opts = append(opts, api.WithHealthCheck(name, check))
	}
	if cfg.Server.EnableAirdrop {
		opts = append(opts, api.WithAirdrop(ledger))
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.NewServer(svc, opts...).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("clock", cfg.Solana.Clock),
			zap.String("program_id", programID.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// createStores builds memory stores or Postgres and ClickHouse stores with
// migrations applied.
func createStores(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*stores, error) {
	if cfg.Backend == config.BackendMemory {
		return &stores{
			auctions: memory.NewAuctionStore(),
			curves:   memory.NewPriceCurveStore(),
			checks:   make(map[string]api.HealthCheck),
			close:    func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	if len(applied) > 0 {
		log.Info("postgres migrations applied", zap.Strings("files", applied))
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	return &stores{
		auctions: pgstore.NewAuctionStore(pool),
		curves:   chstore.NewPriceCurveStore(chConn),
		checks: map[string]api.HealthCheck{
			"postgres":   func(ctx context.Context) error { return pool.Ping(ctx) },
			"clickhouse": func(ctx context.Context) error { return chConn.Ping(ctx) },
		},
		close: func() {
			_ = chConn.Close()
			pool.Close()
		},
	}, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
// Existing variables win.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if os.Getenv(key) == "" {
			os.Setenv(key, strings.TrimSpace(value))
		}
	}
}
