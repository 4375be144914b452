package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/bidder"
	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/tracker"
	"github.com/zkintents/taralli/pkg/validator"
)

// RequesterSearchingClient runs spec.md §4.K's requester-searching state
// machine: query the broker's stored offers for a system, pick the most
// recent one, validate, bid, then track its resolve event. Grounded on
// original_source/crates/taralli-client/src/client.rs's searching flow
// ("pick last offer" matches the original's take-the-newest selection).
type RequesterSearchingClient struct {
	transport   *BrokerTransport
	clock       TimestampSource
	validators  *validator.Registry
	offerMarket common.Address

	bidder  *bidder.Bidder
	tracker *tracker.Tracker

	privateKeyHex string
	logger        *log.Logger
}

// NewRequesterSearchingClient constructs a RequesterSearchingClient.
func NewRequesterSearchingClient(
	transport *BrokerTransport,
	clock TimestampSource,
	validators *validator.Registry,
	offerMarket common.Address,
	b *bidder.Bidder,
	t *tracker.Tracker,
	privateKeyHex string,
) *RequesterSearchingClient {
	return &RequesterSearchingClient{
		transport:     transport,
		clock:         clock,
		validators:    validators,
		offerMarket:   offerMarket,
		bidder:        b,
		tracker:       t,
		privateKeyHex: privateKeyHex,
		logger:        log.New(log.Writer(), "[RequesterSearching] ", log.LstdFlags),
	}
}

// Run queries systemID's stored offers, bids on the newest one, and waits
// for its resolve event (bounded by the offer's endAuctionTimestamp +
// provingTime). Returns errs.ErrNotFound if no live offer exists.
func (c *RequesterSearchingClient) Run(ctx context.Context, systemID systems.SystemId) (*tracker.Event, error) {
	offers, err := c.transport.QueryOffers(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("%w: no live %s offers", errs.ErrNotFound, systemID)
	}
	stored := offers[len(offers)-1]

	rec, err := codec.DecodeOfferStream(stored.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode stored offer: %w", err)
	}
	params, err := codec.DecompressSystemParams(rec.System, codec.DefaultBrotliOptions())
	if err != nil {
		return nil, fmt.Errorf("decompress system payload: %w", err)
	}
	off := &intent.ComputeOffer{
		SystemID:   rec.SystemID,
		System:     params,
		Commitment: rec.Commitment,
		Signature:  rec.Signature,
	}

	latestTS, err := c.clock.LatestTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch latest timestamp: %w", err)
	}
	if err := c.validators.ValidateOffer(ctx, off, latestTS, c.offerMarket); err != nil {
		return nil, fmt.Errorf("validate offer: %w", err)
	}
	if _, err := c.bidder.SubmitBidForOffer(ctx, off, c.privateKeyHex, latestTS); err != nil {
		return nil, fmt.Errorf("bid: %w", err)
	}

	intentID, err := off.ComputeId()
	if err != nil {
		return nil, fmt.Errorf("compute intent id: %w", err)
	}
	resolveWindow := time.Duration(off.Commitment.EndAuctionTimestamp+uint64(off.Commitment.ProvingTime)-latestTS) * time.Second

	event, err := c.tracker.TrackResolve(ctx, intentID, resolveWindow)
	if err != nil {
		return nil, fmt.Errorf("track resolve: %w", err)
	}
	return event, nil
}
