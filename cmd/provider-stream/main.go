// Command provider-stream runs spec.md §4.K's provider-streaming state
// machine: subscribe to the broker's request stream for one or more
// systems, bid on whichever request the account can afford, prove, and
// resolve.
package main

import (
	"context"
	"flag"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/bidder"
	"github.com/zkintents/taralli/pkg/client"
	"github.com/zkintents/taralli/pkg/config"
	"github.com/zkintents/taralli/pkg/markets"
	"github.com/zkintents/taralli/pkg/resolver"
	"github.com/zkintents/taralli/pkg/rpcclient"
	"github.com/zkintents/taralli/pkg/signer"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/validator"
	"github.com/zkintents/taralli/pkg/worker"
)

func main() {
	var (
		network      = flag.String("network", "sepolia", "markets registry network entry to use")
		systemsFlag  = flag.String("systems", "gnark", "comma-separated system ids to subscribe to")
		targetReward = flag.String("target-reward", "0", "minimum reward (wei) worth bidding for")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	marketRegistry, err := markets.Load(cfg.MarketsPath)
	if err != nil {
		marketRegistry = markets.Default()
	}
	net, ok := marketRegistry[*network]
	if !ok {
		log.Fatalf("unknown network %q in markets registry", *network)
	}
	requestMarket := common.HexToAddress(net.UniversalBombetta)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain, err := rpcclient.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("dial RPC endpoint: %v", err)
	}

	s, err := signer.New(cfg.SigningKey)
	if err != nil {
		log.Fatalf("load signer: %v", err)
	}

	marketABI, err := markets.BombettaABI()
	if err != nil {
		log.Fatalf("parse market ABI: %v", err)
	}

	b := bidder.New(chain, rpcclient.NewBidSender(chain), marketABI, requestMarket)
	r := resolver.New(rpcclient.NewResolveSender(chain), marketABI, requestMarket)

	workers := worker.NewManager()
	workers.Register(systems.Gnark, worker.NewGnarkWorker())
	workers.Register(systems.Risc0, worker.NewExternalWorker(systems.Risc0, "risc0-prover"))
	workers.Register(systems.Sp1, worker.NewExternalWorker(systems.Sp1, "sp1-prover"))
	workers.Register(systems.Arkworks, worker.NewExternalWorker(systems.Arkworks, "arkworks-prover"))
	workers.Register(systems.AlignedLayer, worker.NewExternalWorker(systems.AlignedLayer, "aligned-layer-prover"))

	registry := validator.NewRegistry(validator.NewStandardValidator(systems.VerifierConstraints{}, validator.AmountConfig{}))

	reward, ok := new(big.Int).SetString(*targetReward, 10)
	if !ok {
		log.Fatalf("invalid -target-reward %q", *targetReward)
	}

	transport := client.NewBrokerTransport(cfg.ServerURL)
	c := client.NewProviderStreamingClient(transport, chain, registry, requestMarket, b, workers, r, cfg.SigningKey, reward)

	ids, err := parseSystemIDs(*systemsFlag)
	if err != nil {
		log.Fatalf("parse -systems: %v", err)
	}

	log.Printf("provider-stream: subscribing as %s for %v", s.Address(), ids)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	if err := c.Run(ctx, ids...); err != nil && ctx.Err() == nil {
		log.Fatalf("provider-stream run: %v", err)
	}
	log.Printf("provider-stream: stopped")
}

func parseSystemIDs(csv string) ([]systems.SystemId, error) {
	var ids []systems.SystemId
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := systems.ParseSystemId(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
