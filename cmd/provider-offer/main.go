// Command provider-offer runs spec.md §4.K's provider-offering state
// machine: build, sign, and submit a compute offer for a compiled program,
// then watch for a bid and resolve once one lands.
package main

import (
	"context"
	"flag"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/builder"
	"github.com/zkintents/taralli/pkg/client"
	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/config"
	"github.com/zkintents/taralli/pkg/markets"
	"github.com/zkintents/taralli/pkg/nonce"
	"github.com/zkintents/taralli/pkg/resolver"
	"github.com/zkintents/taralli/pkg/rpcclient"
	"github.com/zkintents/taralli/pkg/signer"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/tracker"
	"github.com/zkintents/taralli/pkg/validator"
	"github.com/zkintents/taralli/pkg/worker"
)

func main() {
	var (
		network      = flag.String("network", "sepolia", "markets registry network entry to use")
		systemName   = flag.String("system", "gnark", "system id to offer work for")
		programPath  = flag.String("program", "", "path to the opaque program bytes (ELF/r1cs/wasm) to offer")
		rewardAmount = flag.String("reward", "0", "reward amount (wei) asked for")
		stakeAmount  = flag.String("stake", "0", "stake amount (wei) posted")
		provingTime  = flag.Uint("proving-time", 30, "minimum proving time in seconds")
		auctionLen   = flag.Duration("auction-window", 60*time.Second, "how long to wait for a bid before exiting")
	)
	flag.Parse()

	if *programPath == "" {
		log.Fatalf("-program is required")
	}

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

	s, err := signer.New(cfg.SigningKey)
	if err != nil {
		log.Fatalf("load signer: %v", err)
	}

	marketABI, err := markets.PorchettaABI()
	if err != nil {
		log.Fatalf("parse market ABI: %v", err)
	}

	programBytes, err := os.ReadFile(*programPath)
	if err != nil {
		log.Fatalf("read program file: %v", err)
	}
	systemBytes, err := codec.CompressSystemParams(&systems.RawSystemParams{ID: systemID, Bytes: programBytes}, codec.DefaultBrotliOptions())
	if err != nil {
		log.Fatalf("compress system params: %v", err)
	}

	permit2 := rpcclient.NewPermit2Reader(chain, common.HexToAddress(net.Permit2))
	nonces := nonce.NewManager(permit2, s.Address())

	latestTS, err := chain.LatestTimestamp(ctx)
	if err != nil {
		log.Fatalf("fetch chain timestamp: %v", err)
	}

	ob := builder.NewOfferBuilder(chain, nonces, s.Address(), offerMarket, systemID)
	ob.AuctionLength(uint32(auctionLen.Seconds())).
		TimeParams(0, 0, uint32(*provingTime)).
		TokenParams(common.Address{}, bigFromString(*rewardAmount), common.Address{}, bigFromString(*stakeAmount)).
		System(&systems.RawSystemParams{ID: systemID, Bytes: programBytes})
	if _, err := ob.SetNewNonce(ctx); err != nil {
		log.Fatalf("reserve nonce: %v", err)
	}
	if _, err := ob.SetAuctionTimestampsFromAuctionLength(ctx); err != nil {
		log.Fatalf("derive auction window: %v", err)
	}

	bidTracker := tracker.New(chain, marketABI, offerMarket)
	workers := worker.NewManager()
	workers.Register(systems.Gnark, worker.NewGnarkWorker())
	workers.Register(systems.Risc0, worker.NewExternalWorker(systems.Risc0, "risc0-prover"))
	workers.Register(systems.Sp1, worker.NewExternalWorker(systems.Sp1, "sp1-prover"))
	workers.Register(systems.Arkworks, worker.NewExternalWorker(systems.Arkworks, "arkworks-prover"))
	workers.Register(systems.AlignedLayer, worker.NewExternalWorker(systems.AlignedLayer, "aligned-layer-prover"))

	r := resolver.New(rpcclient.NewResolveSender(chain), marketABI, offerMarket)
	registry := validator.NewRegistry(validator.NewStandardValidator(systems.VerifierConstraints{}, validator.AmountConfig{}))

	transport := client.NewBrokerTransport(cfg.ServerURL)
	c := client.NewProviderOfferingClient(transport, registry, offerMarket, s, bidTracker, workers, r, cfg.SigningKey)

	log.Printf("provider-offer: submitting a %s offer as %s", systemID, s.Address())
	if err := c.Run(ctx, ob, latestTS, *auctionLen, systemBytes); err != nil {
		log.Fatalf("provider-offer run: %v", err)
	}
	log.Printf("provider-offer: done")
}

func bigFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		log.Fatalf("invalid amount %q", s)
	}
	return n
}
