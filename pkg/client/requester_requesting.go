package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/builder"
	"github.com/zkintents/taralli/pkg/signer"
	"github.com/zkintents/taralli/pkg/tracker"
	"github.com/zkintents/taralli/pkg/validator"
)

// RequesterRequestingClient runs spec.md §4.K's requester-requesting state
// machine: build, sign, validate, submit, then watch both the bid and the
// resolve event concurrently before exiting. Grounded on
// original_source/crates/taralli-client/src/client.rs's requesting flow
// (tokio::join! over both trackers).
type RequesterRequestingClient struct {
	transport     *BrokerTransport
	validators    *validator.Registry
	requestMarket common.Address

	signer        *signer.Signer
	auctionTracker *tracker.Tracker
	resolveTracker *tracker.Tracker

	logger *log.Logger
}

// NewRequesterRequestingClient constructs a RequesterRequestingClient.
// auctionTracker and resolveTracker are typically the same *tracker.Tracker
// instance (one market ABI serves both Bid and Resolve events) but are
// accepted separately in case a deployment splits them across contracts.
func NewRequesterRequestingClient(
	transport *BrokerTransport,
	validators *validator.Registry,
	requestMarket common.Address,
	s *signer.Signer,
	auctionTracker, resolveTracker *tracker.Tracker,
) *RequesterRequestingClient {
	return &RequesterRequestingClient{
		transport:      transport,
		validators:     validators,
		requestMarket:  requestMarket,
		signer:         s,
		auctionTracker: auctionTracker,
		resolveTracker: resolveTracker,
		logger:         log.New(log.Writer(), "[RequesterRequesting] ", log.LstdFlags),
	}
}

// Outcome reports what the requesting flow observed before exiting.
type Outcome struct {
	IntentID   common.Hash
	BidEvent   *tracker.Event
	ResolveEvent *tracker.Event
}

// Run builds req via rb, signs, validates, submits it, then awaits both a
// bid and a resolve event (or their timeouts) before returning.
func (c *RequesterRequestingClient) Run(ctx context.Context, rb *builder.RequestBuilder, latestTS uint64, systemBytes []byte) (*Outcome, error) {
	req, err := rb.Build()
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if err := c.signer.SignRequest(req); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	if err := c.validators.ValidateRequest(ctx, req, latestTS, c.requestMarket); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}
	if _, err := c.transport.SubmitRequest(ctx, req, systemBytes); err != nil {
		return nil, fmt.Errorf("submit request: %w", err)
	}

	intentID, err := req.ComputeId()
	if err != nil {
		return nil, fmt.Errorf("compute intent id: %w", err)
	}

	auctionWindow := time.Duration(req.Commitment.EndAuctionTimestamp-req.Commitment.StartAuctionTimestamp) * time.Second
	resolveWindow := time.Duration(req.Commitment.EndAuctionTimestamp+uint64(req.Commitment.ProvingTime)-latestTS) * time.Second

	type bidResult struct {
		event *tracker.Event
		err   error
	}
	type resolveResult struct {
		event *tracker.Event
		err   error
	}
	bidCh := make(chan bidResult, 1)
	resolveCh := make(chan resolveResult, 1)

	go func() {
		event, err := c.auctionTracker.TrackAuction(ctx, intentID, auctionWindow)
		bidCh <- bidResult{event, err}
	}()
	go func() {
		event, err := c.resolveTracker.TrackResolve(ctx, intentID, resolveWindow)
		resolveCh <- resolveResult{event, err}
	}()

	bid := <-bidCh
	resolve := <-resolveCh
	if bid.err != nil {
		return nil, fmt.Errorf("track auction: %w", bid.err)
	}
	if resolve.err != nil {
		return nil, fmt.Errorf("track resolve: %w", resolve.err)
	}

	return &Outcome{IntentID: intentID, BidEvent: bid.event, ResolveEvent: resolve.event}, nil
}
