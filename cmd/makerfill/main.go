// Command makerfill works a set of target positions on Binance USD-M
// futures by posting and replacing post-only limit orders until each
// target's notional is filled, then prints one summary per symbol.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"makerfill/internal/config"
	"makerfill/internal/core"
	"makerfill/internal/exchange"
	"makerfill/internal/metrics"
	"makerfill/internal/persistence"
	"makerfill/internal/runner"
	"makerfill/internal/stream"
	"makerfill/pkg/logging"
)

const (
	mainnetStreamEndpoint = "wss://fstream.binance.com"
	testnetStreamEndpoint = "wss://stream.binancefuture.com"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	positionsJSON := flag.String("positions", "", `target positions as a JSON array, e.g. '[{"symbol":"BTCUSDT","notional":10000,"reduce_only":false}]'`)
	flag.Parse()

	if err := run(*configPath, *positionsJSON); err != nil {
		fmt.Fprintf(os.Stderr, "makerfill: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, positionsJSON string) error {
	positions, err := parsePositions(positionsJSON)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zapLogger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()
	var logger core.ILogger = zapLogger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	if cfg.Telemetry.EnableMetrics {
		metricsSrv := metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
		metricsSrv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Stop(shutdownCtx)
		}()
	}

	futures.UseTestnet = cfg.Binance.Testnet
	client := binance.NewFuturesClient(cfg.Binance.APIKey, cfg.Binance.SecretKey)

	symbols := make([]string, len(positions))
	for i, pos := range positions {
		symbols[i] = pos.Symbol
	}
	instruments, err := exchange.LoadInstruments(ctx, client, symbols)
	if err != nil {
		return err
	}

	gateway := exchange.NewBinanceGateway(client, logger, recorder)
	engine, err := runner.NewEngine(positions, instruments, gateway, logger, recorder,
		time.Duration(cfg.Execution.WatchIntervalMs)*time.Millisecond)
	if err != nil {
		return err
	}

	endpoint := cfg.Binance.WSEndpoint
	if endpoint == "" {
		endpoint = mainnetStreamEndpoint
		if cfg.Binance.Testnet {
			endpoint = testnetStreamEndpoint
		}
	}
	session := stream.NewSession(client, engine.Symbols(), engine, stream.Options{
		Endpoint:          endpoint,
		DepthLevels:       cfg.Execution.DepthLevels,
		DepthUpdateMs:     cfg.Execution.DepthUpdateMs,
		KeepaliveInterval: time.Duration(cfg.Execution.ListenKeyKeepaliveInterval) * time.Second,
	}, logger, recorder)

	startedAt := time.Now()
	summaries, err := engine.Run(ctx, session)
	if err != nil {
		return err
	}

	if cfg.Storage.SQLitePath != "" {
		repo, err := persistence.NewRepository(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open results store: %w", err)
		}
		defer func() { _ = repo.Close() }()
		if err := repo.SaveRun(context.Background(), engine.RunID(), startedAt, time.Now(), summaries); err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summaries)
}

func parsePositions(positionsJSON string) ([]core.TargetPosition, error) {
	if positionsJSON == "" {
		return nil, fmt.Errorf("-positions is required")
	}
	var positions []core.TargetPosition
	if err := json.Unmarshal([]byte(positionsJSON), &positions); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}
	for _, pos := range positions {
		if pos.Symbol == "" {
			return nil, fmt.Errorf("position with empty symbol")
		}
		if pos.Notional == 0 {
			return nil, fmt.Errorf("position %s has zero notional", pos.Symbol)
		}
	}
	return positions, nil
}
