package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solbox/config"
	"solbox/core/state"
	"solbox/native/giftcard"
	"solbox/observability/logging"
	"solbox/rpc"
	"solbox/storage"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SOLBOX_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("solboxd", env).Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var logger *slog.Logger
	if cfg.LogFile != "" {
		logger = logging.SetupWithWriter(logging.FileWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups), "solboxd", env)
	} else {
		logger = logging.Setup("solboxd", env)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.String("dataDir", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := giftcard.NewEngine()
	engine.SetState(manager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		observabilityMux := http.NewServeMux()
		observabilityMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: observabilityMux}
		go func() {
			logger.Info("Serving metrics", slog.String("address", cfg.MetricsAddress))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(engine, manager)
	server.SetContractDefaults(&giftcard.ContractConfig{
		ReferralLimit:        cfg.Contract.ReferralLimit,
		CommissionPercentage: cfg.Contract.CommissionPercentage,
		BonusPercentage:      cfg.Contract.BonusPercentage,
		ValidAmounts:         cfg.Contract.ValidAmounts,
	})
	rpcSrv := &http.Server{Addr: cfg.RPCAddress, Handler: server.Handler()}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server",
			slog.String("address", cfg.RPCAddress),
			slog.String("network", cfg.NetworkName))
		serveErr <- rpcSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server stopped", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rpcSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("RPC shutdown failed", slog.Any("error", err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics shutdown failed", slog.Any("error", err))
		}
	}
	logger.Info("Shutdown complete")
}
