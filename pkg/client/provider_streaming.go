package client

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/bidder"
	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/resolver"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/validator"
	"github.com/zkintents/taralli/pkg/worker"
)

// TimestampSource supplies the latest chain timestamp, satisfied by
// *rpcclient.Client.
type TimestampSource interface {
	LatestTimestamp(ctx context.Context) (uint64, error)
}

// ProviderStreamingClient runs spec.md §4.K's provider-streaming state
// machine: subscribe, then loop { recv request, validate, bid, work,
// resolve }, logging and continuing past a failed iteration rather than
// tearing down the whole stream. Grounded on
// original_source/crates/taralli-client/src/subscriber.rs's request
// subscription loop.
type ProviderStreamingClient struct {
	transport  *BrokerTransport
	clock      TimestampSource
	validators *validator.Registry
	market     common.Address

	bidder   *bidder.Bidder
	workers  *worker.Manager
	resolver *resolver.Resolver

	privateKeyHex string
	targetReward  *big.Int

	logger *log.Logger
}

// NewProviderStreamingClient constructs a ProviderStreamingClient. market is
// the expected request-market address the validator checks every incoming
// request against. targetReward may be nil to bid immediately rather than
// wait for the price curve to reach a target.
func NewProviderStreamingClient(
	transport *BrokerTransport,
	clock TimestampSource,
	validators *validator.Registry,
	market common.Address,
	b *bidder.Bidder,
	workers *worker.Manager,
	r *resolver.Resolver,
	privateKeyHex string,
	targetReward *big.Int,
) *ProviderStreamingClient {
	return &ProviderStreamingClient{
		transport:     transport,
		clock:         clock,
		validators:    validators,
		market:        market,
		bidder:        b,
		workers:       workers,
		resolver:      r,
		privateKeyHex: privateKeyHex,
		targetReward:  targetReward,
		logger:        log.New(log.Writer(), "[ProviderStreaming] ", log.LstdFlags),
	}
}

// Run subscribes to systemIDs and processes the stream until ctx is
// cancelled or the server closes the connection.
func (c *ProviderStreamingClient) Run(ctx context.Context, systemIDs ...systems.SystemId) error {
	stream, err := c.transport.Subscribe(ctx, systemIDs...)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		if err := c.handleRequest(ctx, rec); err != nil {
			c.logger.Printf("iteration failed, continuing: %v", err)
		}
	}
}

func (c *ProviderStreamingClient) handleRequest(ctx context.Context, rec *codec.RequestStreamRecord) error {
	params, err := codec.DecompressSystemParams(rec.System, codec.DefaultBrotliOptions())
	if err != nil {
		return fmt.Errorf("decompress system payload: %w", err)
	}
	req := &intent.ComputeRequest{
		SystemID:   rec.SystemID,
		System:     params,
		Commitment: rec.Commitment,
		Signature:  rec.Signature,
	}

	latestTS, err := c.clock.LatestTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest timestamp: %w", err)
	}
	if err := c.validators.ValidateRequest(ctx, req, latestTS, c.market); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if _, err := c.bidder.SubmitBidForRequest(ctx, req, c.privateKeyHex, c.targetReward, latestTS); err != nil {
		return fmt.Errorf("bid: %w", err)
	}

	result, err := c.workers.Execute(ctx, req.System)
	if err != nil {
		return fmt.Errorf("work: %w", err)
	}

	intentID, err := req.ComputeId()
	if err != nil {
		return fmt.Errorf("compute intent id: %w", err)
	}
	if _, err := c.resolver.Resolve(ctx, intentID, result.OpaqueSubmission, result.PartialCommitment, c.privateKeyHex); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return nil
}
