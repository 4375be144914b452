package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/builder"
	"github.com/zkintents/taralli/pkg/resolver"
	"github.com/zkintents/taralli/pkg/signer"
	"github.com/zkintents/taralli/pkg/tracker"
	"github.com/zkintents/taralli/pkg/validator"
	"github.com/zkintents/taralli/pkg/worker"
)

// ProviderOfferingClient runs spec.md §4.K's provider-offering state
// machine: build, sign, validate, submit, track the auction window for a
// bid, then work and resolve once one lands. If the auction window elapses
// with no bid, Run exits cleanly (timeout is not an error, per §4.G).
// Grounded on
// original_source/crates/taralli-client/src/client.rs's offering flow.
type ProviderOfferingClient struct {
	transport   *BrokerTransport
	validators  *validator.Registry
	offerMarket common.Address

	signer   *signer.Signer
	tracker  *tracker.Tracker
	workers  *worker.Manager
	resolver *resolver.Resolver

	privateKeyHex string
	logger        *log.Logger
}

// NewProviderOfferingClient constructs a ProviderOfferingClient.
func NewProviderOfferingClient(
	transport *BrokerTransport,
	validators *validator.Registry,
	offerMarket common.Address,
	s *signer.Signer,
	t *tracker.Tracker,
	workers *worker.Manager,
	r *resolver.Resolver,
	privateKeyHex string,
) *ProviderOfferingClient {
	return &ProviderOfferingClient{
		transport:     transport,
		validators:    validators,
		offerMarket:   offerMarket,
		signer:        s,
		tracker:       t,
		workers:       workers,
		resolver:      r,
		privateKeyHex: privateKeyHex,
		logger:        log.New(log.Writer(), "[ProviderOffering] ", log.LstdFlags),
	}
}

// Run builds off via ob (already populated with reward/stake/time
// parameters and its system payload), signs, validates, submits it, then
// waits up to auctionLen for a bid. Once one lands it runs the worker and
// resolves; a clean timeout with no bid returns nil.
func (c *ProviderOfferingClient) Run(ctx context.Context, ob *builder.OfferBuilder, latestTS uint64, auctionLen time.Duration, systemBytes []byte) error {
	off, err := ob.Build()
	if err != nil {
		return fmt.Errorf("build offer: %w", err)
	}
	if err := c.signer.SignOffer(off); err != nil {
		return fmt.Errorf("sign offer: %w", err)
	}
	if err := c.validators.ValidateOffer(ctx, off, latestTS, c.offerMarket); err != nil {
		return fmt.Errorf("validate offer: %w", err)
	}
	if _, err := c.transport.SubmitOffer(ctx, off, systemBytes); err != nil {
		return fmt.Errorf("submit offer: %w", err)
	}

	intentID, err := off.ComputeId()
	if err != nil {
		return fmt.Errorf("compute intent id: %w", err)
	}

	bidEvent, err := c.tracker.TrackAuction(ctx, intentID, auctionLen)
	if err != nil {
		return fmt.Errorf("track auction: %w", err)
	}
	if bidEvent == nil {
		c.logger.Printf("offer %s: auction window elapsed with no bid", intentID)
		return nil
	}

	result, err := c.workers.Execute(ctx, off.System)
	if err != nil {
		return fmt.Errorf("work: %w", err)
	}
	if _, err := c.resolver.Resolve(ctx, intentID, result.OpaqueSubmission, result.PartialCommitment, c.privateKeyHex); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return nil
}
