package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cescrow/config"
	"cescrow/core/state"
	"cescrow/native/escrow"
	"cescrow/native/market"
	"cescrow/native/receipt"
	"cescrow/observability"
	"cescrow/observability/logging"
	"cescrow/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("escrowd", cfg.Env)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	sink := observability.NewEventSink(logger)

	marketStore := market.NewStore(manager)
	marketStore.SetEmitter(sink)
	if err := seedMarket(logger, marketStore, cfg.Market); err != nil {
		logger.Error("Failed to seed market config", slog.Any("error", err))
		os.Exit(1)
	}

	engine := escrow.NewEngine()
	engine.SetState(manager)
	engine.SetGateway(manager)
	engine.SetMarket(marketStore)
	engine.SetReceipts(receipt.NewLedger(manager))
	engine.SetEmitter(sink)

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddress,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("metrics listener started", slog.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", slog.Any("error", err))
		}
	}()

	logger.Info("escrowd started", slog.String("dataDir", cfg.DataDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics listener shutdown failed", slog.Any("error", err))
	}
	logger.Info("escrowd stopped")
}

// seedMarket installs the genesis market configuration on first start. An
// already initialised market keeps its on-state configuration and the genesis
// block of the config file is ignored. A freshly generated config file carries
// no addresses yet; seeding is deferred until the operator fills them in.
func seedMarket(logger *slog.Logger, store *market.Store, genesis config.MarketGenesis) error {
	if _, err := store.Config(); err == nil {
		return nil
	} else if !errors.Is(err, market.ErrNotInitialized) {
		return err
	}
	if genesisBlank(genesis) {
		logger.Warn("market genesis addresses not set, market stays uninitialised",
			slog.String("hint", "fill in the [Market] section of the config file"))
		return nil
	}
	authority, err := parseAddress(genesis.Authority)
	if err != nil {
		return fmt.Errorf("authority: %w", err)
	}
	treasury, err := parseAddress(genesis.Treasury)
	if err != nil {
		return fmt.Errorf("treasury: %w", err)
	}
	insurance, err := parseAddress(genesis.InsuranceTreasury)
	if err != nil {
		return fmt.Errorf("insurance treasury: %w", err)
	}
	arbiter, err := parseAddress(genesis.Arbiter)
	if err != nil {
		return fmt.Errorf("arbiter: %w", err)
	}

	err = store.InitConfig(market.Config{
		Authority:         authority,
		Treasury:          treasury,
		InsuranceTreasury: insurance,
		Arbiter:           arbiter,
		FeeBps:            genesis.FeeBps,
		InsuranceBps:      genesis.InsuranceBps,
		RetentionBps:      genesis.RetentionBps,
		WarrantyDays:      int64(genesis.WarrantyDays),
		QuorumDefault:     genesis.QuorumDefault,
	})
	if errors.Is(err, market.ErrAlreadyInitialized) {
		return nil
	}
	return err
}

func genesisBlank(genesis config.MarketGenesis) bool {
	return strings.TrimSpace(genesis.Authority) == "" &&
		strings.TrimSpace(genesis.Treasury) == "" &&
		strings.TrimSpace(genesis.InsuranceTreasury) == "" &&
		strings.TrimSpace(genesis.Arbiter) == ""
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("address must not be empty")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, err
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes", len(addr))
	}
	copy(addr[:], decoded)
	return addr, nil
}
