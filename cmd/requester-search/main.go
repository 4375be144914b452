// Command requester-search runs spec.md §4.K's requester-searching state
// machine: query the broker's stored offers for a system, bid on the
// newest one, and wait for its resolve event.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/bidder"
	"github.com/zkintents/taralli/pkg/client"
	"github.com/zkintents/taralli/pkg/config"
	"github.com/zkintents/taralli/pkg/markets"
	"github.com/zkintents/taralli/pkg/rpcclient"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/tracker"
	"github.com/zkintents/taralli/pkg/validator"
)

func main() {
	var (
		network    = flag.String("network", "sepolia", "markets registry network entry to use")
		systemName = flag.String("system", "gnark", "system id to search offers for")
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
	offerMarket := common.HexToAddress(net.UniversalPorchetta)

	systemID, err := systems.ParseSystemId(*systemName)
	if err != nil {
		log.Fatalf("parse -system: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain, err := rpcclient.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("dial RPC endpoint: %v", err)
	}

	marketABI, err := markets.PorchettaABI()
	if err != nil {
		log.Fatalf("parse market ABI: %v", err)
	}

	b := bidder.New(chain, rpcclient.NewBidSender(chain), marketABI, offerMarket)
	resolveTracker := tracker.New(chain, marketABI, offerMarket)
	registry := validator.NewRegistry(validator.NewStandardValidator(systems.VerifierConstraints{}, validator.AmountConfig{}))

	transport := client.NewBrokerTransport(cfg.ServerURL)
	c := client.NewRequesterSearchingClient(transport, chain, registry, offerMarket, b, resolveTracker, cfg.SigningKey)

	log.Printf("requester-search: searching %s offers", systemID)
	event, err := c.Run(ctx, systemID)
	if err != nil {
		log.Fatalf("requester-search run: %v", err)
	}
	log.Printf("requester-search: resolved, event=%+v", event)
}
