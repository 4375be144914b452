// Command taralli-broker runs the marketplace's central clearinghouse: the
// HTTP submit/query/subscribe API, the submit -> validate -> persist ->
// fan-out pipeline, and the background offer-expiry sweeper.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/broker"
	"github.com/zkintents/taralli/pkg/config"
	"github.com/zkintents/taralli/pkg/markets"
	"github.com/zkintents/taralli/pkg/metrics"
	"github.com/zkintents/taralli/pkg/rpcclient"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/validator"
)

func isZeroAddress(addr common.Address) bool {
	return addr == common.Address{}
}

func main() {
	log.Printf("starting taralli broker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateBroker(); err != nil {
		log.Fatalf("invalid broker config: %v", err)
	}

	fileCfg, err := config.LoadBrokerFileConfig(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("load broker config file: %v", err)
	}

	marketRegistry, err := markets.Load(cfg.MarketsPath)
	if err != nil {
		log.Printf("no markets config at %s, falling back to defaults: %v", cfg.MarketsPath, err)
		marketRegistry = markets.Default()
	}
	requestMarket := fileCfg.Markets.UniversalBombetta
	offerMarket := fileCfg.Markets.UniversalPorchetta
	if isZeroAddress(requestMarket) || isZeroAddress(offerMarket) {
		sepolia, ok := marketRegistry["sepolia"]
		if !ok {
			log.Fatalf("config.json leaves markets unset and the markets registry has no sepolia entry")
		}
		requestMarket = common.HexToAddress(sepolia.UniversalBombetta)
		offerMarket = common.HexToAddress(sepolia.UniversalPorchetta)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain, err := rpcclient.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("dial RPC endpoint: %v", err)
	}

	store, err := broker.NewStore(cfg)
	if err != nil {
		log.Fatalf("open intent store: %v", err)
	}

	hub := broker.NewHub()
	metricsRegistry := metrics.New()

	amounts := validator.AmountConfig{
		MaximumAllowedStake:  fileCfg.RequestValidationConfig.MaximumAllowedStake,
		MaximumAllowedReward: fileCfg.OfferValidationConfig.MaximumAllowedReward,
		MinimumAllowedStake:  fileCfg.OfferValidationConfig.MinimumAllowedStake,
	}
	stdValidator := validator.NewStandardValidator(systems.VerifierConstraints{}, amounts)
	stdValidator.Base = fileCfg.BaseValidationConfig
	registry := validator.NewRegistry(stdValidator)

	b := broker.New(store, hub, registry, chain, fileCfg, requestMarket, offerMarket, broker.WithMetrics(metricsRegistry))

	sweeper := broker.NewSweeper(store, metricsRegistry, nil)
	go sweeper.Run(ctx)

	handlers := broker.NewHandlers(b)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: broker.NewRouter(handlers),
	}

	go func() {
		log.Printf("broker HTTP API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down broker")
	handlers.Shutdown(10 * time.Second)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	cancel()
	log.Printf("broker stopped")
}
