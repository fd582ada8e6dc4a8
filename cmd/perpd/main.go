package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"perpcore/api"
	"perpcore/config"
	"perpcore/core/events"
	"perpcore/observability/logging"
	"perpcore/observability/metrics"
	"perpcore/storage"
	"perpcore/venue/common"
	"perpcore/venue/funding"
	"perpcore/venue/trade"
	"perpcore/venue/vault"
)

func main() {
	configFile := flag.String("config", "./perpd.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PERPD_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("perpd", env, logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to create data dir: %v", err))
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	journal, err := storage.OpenJournal(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open journal: %v", err))
	}
	defer journal.Close()

	manager := storage.NewManager(db)
	pauses := common.NewPauseSet(cfg.PausedModules...)
	emitter := events.FanOut{journal, metrics.NewEmitter()}

	var poolAddr [20]byte
	if cfg.PoolAddress != "" {
		if poolAddr, err = config.ParseAddress(cfg.PoolAddress); err != nil {
			logger.Error("Invalid pool address", slog.Any("error", err))
			os.Exit(1)
		}
	}
	var vaultAddr [20]byte
	vaultAddr[19] = 0x01
	if poolAddr == ([20]byte{}) {
		poolAddr[19] = 0x02
	}

	vaultParams, err := cfg.VaultParams()
	if err != nil {
		logger.Error("Invalid vault parameters", slog.Any("error", err))
		os.Exit(1)
	}

	vaultLedger := storage.NewAccountLedger(db, vaultAddr)
	tradeLedger := storage.NewAccountLedger(db, poolAddr)

	fundingEngine := funding.NewEngine()
	fundingEngine.SetState(manager)
	fundingEngine.SetEmitter(emitter)
	fundingEngine.SetPauses(pauses)

	vaultEngine := vault.NewEngine(vaultParams)
	vaultEngine.SetState(manager)
	vaultEngine.SetLedger(vaultLedger)
	vaultEngine.SetEmitter(emitter)
	vaultEngine.SetPauses(pauses)

	maxSupply, err := cfg.VaultMaxSupply()
	if err != nil {
		logger.Error("Invalid vault supply cap", slog.Any("error", err))
		os.Exit(1)
	}
	if err := vaultEngine.SetSupplyCap(maxSupply); err != nil {
		logger.Error("Failed to seed vault supply cap", slog.Any("error", err))
		os.Exit(1)
	}

	tradeEngine := trade.NewEngine()
	tradeEngine.SetState(manager)
	tradeEngine.SetLedger(tradeLedger)
	tradeEngine.SetVault(vaultEngine)
	tradeEngine.SetFeeEngine(fundingEngine)
	tradeEngine.SetEmitter(emitter)
	tradeEngine.SetPauses(pauses)
	tradeEngine.SetPoolAddress(poolAddr)

	quotes := api.NewQuoteStore()
	tradeEngine.SetPriceFeed(quotes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	height, err := manager.BlockHeight()
	if err != nil {
		logger.Error("Failed to restore block height", slog.Any("error", err))
		os.Exit(1)
	}
	fundingEngine.SetBlockHeight(height)
	tradeEngine.SetBlockHeight(height)

	// Block heights drive funding and rollover accrual; the clock ticks
	// them forward at the configured interval.
	go runBlockClock(ctx, cfg.BlockIntervalSeconds, manager, fundingEngine, tradeEngine, logger)

	server := api.NewServer(fundingEngine, vaultEngine, tradeEngine, manager, journal, tradeLedger, pauses, quotes, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("perpd listening", slog.String("address", cfg.ListenAddress), slog.String("network", cfg.NetworkName))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", slog.Any("error", err))
	}
	if err := journal.Err(); err != nil {
		logger.Error("journal append failures detected", slog.Any("error", err))
	}
}

func runBlockClock(ctx context.Context, intervalSeconds uint64, manager *storage.Manager, fundingEngine *funding.Engine, tradeEngine *trade.Engine, logger *slog.Logger) {
	if intervalSeconds == 0 {
		intervalSeconds = 1
	}
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	defer ticker.Stop()

	height := fundingEngine.BlockHeight()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height++
			fundingEngine.SetBlockHeight(height)
			tradeEngine.SetBlockHeight(height)
			if err := manager.PutBlockHeight(height); err != nil {
				logger.Error("Failed to persist block height", slog.Any("error", err))
			}
			logger.Debug("block height advanced", slog.Uint64("height", height))
		}
	}
}
