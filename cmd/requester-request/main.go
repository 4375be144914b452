// Command requester-request runs spec.md §4.K's requester-requesting state
// machine: build and sign a compute request, submit it to the broker, then
// wait for a bid and a resolve event before exiting.
package main

import (
	"context"
	"flag"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/builder"
	"github.com/zkintents/taralli/pkg/client"
	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/config"
	"github.com/zkintents/taralli/pkg/markets"
	"github.com/zkintents/taralli/pkg/nonce"
	"github.com/zkintents/taralli/pkg/rpcclient"
	"github.com/zkintents/taralli/pkg/signer"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/tracker"
	"github.com/zkintents/taralli/pkg/validator"
)

func main() {
	var (
		network      = flag.String("network", "sepolia", "markets registry network entry to use")
		systemName   = flag.String("system", "gnark", "system id to request work for")
		programPath  = flag.String("program", "", "path to the opaque program bytes (ELF/r1cs/wasm) to submit")
		minStake     = flag.String("min-stake", "0", "minimum stake (wei) a bidder must post")
		minReward    = flag.String("min-reward", "0", "reward floor (wei)")
		maxReward    = flag.String("max-reward", "0", "reward ceiling (wei)")
		auctionLen   = flag.Uint("auction-length", 60, "auction window length in seconds")
		provingTime  = flag.Uint("proving-time", 30, "minimum proving time in seconds")
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
	requestMarket := common.HexToAddress(net.UniversalBombetta)

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

	marketABI, err := markets.BombettaABI()
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

	rb := builder.NewRequestBuilder(chain, nonces, s.Address(), requestMarket, systemID)
	rb.AuctionLength(uint32(*auctionLen)).
		TimeParams(0, 0, uint32(*provingTime)).
		RewardParams(bigFromString(*minStake), bigFromString(*minReward), bigFromString(*maxReward)).
		System(&systems.RawSystemParams{ID: systemID, Bytes: programBytes})
	if _, err := rb.SetNewNonce(ctx); err != nil {
		log.Fatalf("reserve nonce: %v", err)
	}
	if _, err := rb.SetAuctionTimestampsFromAuctionLength(ctx); err != nil {
		log.Fatalf("derive auction window: %v", err)
	}

	latestTS, err := chain.LatestTimestamp(ctx)
	if err != nil {
		log.Fatalf("fetch chain timestamp: %v", err)
	}

	registry := validator.NewRegistry(validator.NewStandardValidator(systems.VerifierConstraints{}, validator.AmountConfig{}))
	bidTracker := tracker.New(chain, marketABI, requestMarket)

	transport := client.NewBrokerTransport(cfg.ServerURL)
	c := client.NewRequesterRequestingClient(transport, registry, requestMarket, s, bidTracker, bidTracker)

	log.Printf("requester-request: submitting a %s request as %s", systemID, s.Address())
	outcome, err := c.Run(ctx, rb, latestTS, systemBytes)
	if err != nil {
		log.Fatalf("requester-request run: %v", err)
	}
	log.Printf("requester-request: intent %s bid=%v resolve=%v", outcome.IntentID, outcome.BidEvent != nil, outcome.ResolveEvent != nil)
}

func bigFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		log.Fatalf("invalid amount %q", s)
	}
	return n
}
