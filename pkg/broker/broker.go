package broker

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/config"
	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/metrics"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/validator"
)

// TimestampSource supplies the "latest chain timestamp" the validator's time
// bounds are checked against. Satisfied by *rpcclient.Client.
type TimestampSource interface {
	LatestTimestamp(ctx context.Context) (uint64, error)
}

// Broker is the submit -> validate -> persist/route pipeline: the single
// object the root main.go wires HTTP handlers against. Grounded on
// spec.md §4.F.
type Broker struct {
	store      *Store
	hub        *Hub
	validators *validator.Registry
	clock      TimestampSource
	cfg        *config.BrokerFileConfig

	requestMarket common.Address
	offerMarket   common.Address

	metrics *metrics.Registry
	logger  *log.Logger
}

// Option configures optional Broker behavior.
type Option func(*Broker)

// WithMetrics attaches a metrics.Registry the broker updates as it
// processes submissions.
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Broker) { b.metrics = m }
}

// New constructs a Broker. requestMarket/offerMarket are the expected
// `universal_bombetta`/`universal_porchetta` addresses requests/offers must
// target (spec.md §3's "market == expected_market" invariant).
func New(store *Store, hub *Hub, validators *validator.Registry, clock TimestampSource, cfg *config.BrokerFileConfig, requestMarket, offerMarket common.Address, opts ...Option) *Broker {
	b := &Broker{
		store:         store,
		hub:           hub,
		validators:    validators,
		clock:         clock,
		cfg:           cfg,
		requestMarket: requestMarket,
		offerMarket:   offerMarket,
		logger:        log.New(log.Writer(), "[Broker] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SubmissionResult is the 200-path response shape for a submission: either
// broadcast fan-out (requests) or a stored id (offers), per spec.md §6.
type SubmissionResult struct {
	BroadcastedTo *int    `json:"broadcasted_to,omitempty"`
	StoredID      *string `json:"stored_id,omitempty"`
}

func (b *Broker) validationTimeout() time.Duration {
	secs := b.cfg.ValidationTimeoutSeconds
	if secs <= 0 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// SubmitRequest reassembles, validates, and broadcasts a ComputeRequest.
// partialJSON/systemBytes are the two multipart parts already read off the
// wire; systemBytes is still Brotli-compressed.
func (b *Broker) SubmitRequest(ctx context.Context, partialJSON, systemBytes []byte) (*SubmissionResult, error) {
	partial, err := codec.UnmarshalPartialRequest(partialJSON)
	if err != nil {
		return nil, fmt.Errorf("broker: %w: %w", errs.ErrParse, err)
	}
	params, err := codec.DecompressSystemParams(systemBytes, codec.DefaultBrotliOptions())
	if err != nil {
		return nil, fmt.Errorf("broker: %w: %w", errs.ErrParse, err)
	}
	sig, err := partial.Signature65()
	if err != nil {
		return nil, fmt.Errorf("broker: %w: %w", errs.ErrParse, err)
	}

	req := &intent.ComputeRequest{
		SystemID:   partial.SystemID,
		System:     params,
		Commitment: partial.ProofRequest,
		Signature:  sig,
	}

	if err := b.validateWithTimeout(ctx, func(ctx context.Context, latestTS uint64) error {
		return b.validators.ValidateRequest(ctx, req, latestTS, b.requestMarket)
	}); err != nil {
		b.countSubmission("request", "rejected")
		return nil, err
	}

	rec := codec.RequestStreamRecord{
		SystemID:   req.SystemID,
		System:     systemBytes,
		Commitment: req.Commitment,
		Signature:  req.Signature,
	}
	payload, err := codec.EncodeRequestStream(rec)
	if err != nil {
		b.countSubmission("request", "error")
		return nil, fmt.Errorf("broker: encode request stream record: %w", err)
	}

	n := b.hub.Broadcast(req.SystemID, payload)
	if n == 0 {
		b.logger.Printf("no subscribers for %s request", req.SystemID)
	}
	if b.metrics != nil {
		b.metrics.BroadcastedTo.Observe(float64(n))
	}
	b.countSubmission("request", "accepted")
	return &SubmissionResult{BroadcastedTo: &n}, nil
}

// SubmitOffer reassembles, validates, and persists a ComputeOffer.
func (b *Broker) SubmitOffer(ctx context.Context, partialJSON, systemBytes []byte) (*SubmissionResult, error) {
	partial, err := codec.UnmarshalPartialOffer(partialJSON)
	if err != nil {
		return nil, fmt.Errorf("broker: %w: %w", errs.ErrParse, err)
	}
	params, err := codec.DecompressSystemParams(systemBytes, codec.DefaultBrotliOptions())
	if err != nil {
		return nil, fmt.Errorf("broker: %w: %w", errs.ErrParse, err)
	}
	sig, err := partial.Signature65()
	if err != nil {
		return nil, fmt.Errorf("broker: %w: %w", errs.ErrParse, err)
	}

	off := &intent.ComputeOffer{
		SystemID:   partial.SystemID,
		System:     params,
		Commitment: partial.ProofOffer,
		Signature:  sig,
	}

	if err := b.validateWithTimeout(ctx, func(ctx context.Context, latestTS uint64) error {
		return b.validators.ValidateOffer(ctx, off, latestTS, b.offerMarket)
	}); err != nil {
		b.countSubmission("offer", "rejected")
		return nil, err
	}

	id, err := off.ComputeId()
	if err != nil {
		b.countSubmission("offer", "error")
		return nil, fmt.Errorf("broker: compute offer id: %w", err)
	}

	rec := codec.OfferStreamRecord{
		SystemID:   off.SystemID,
		System:     systemBytes,
		Commitment: off.Commitment,
		Signature:  off.Signature,
	}
	payload, err := codec.EncodeOfferStream(rec)
	if err != nil {
		return nil, fmt.Errorf("broker: encode offer stream record: %w", err)
	}

	idHex := id.Hex()
	nonce := off.Commitment.Nonce
	if nonce == nil {
		nonce = big.NewInt(0)
	}
	if err := b.store.InsertOffer(ctx, idHex, off.SystemID, off.Commitment.Signer, off.Commitment.Market,
		nonce, payload, off.Commitment.StartAuctionTimestamp, off.Commitment.EndAuctionTimestamp); err != nil {
		b.countSubmission("offer", "error")
		return nil, fmt.Errorf("broker: %w: %w", errs.ErrIntentSubmission, err)
	}

	if b.metrics != nil {
		b.metrics.OffersStored.WithLabelValues(off.SystemID.String()).Inc()
	}
	b.countSubmission("offer", "accepted")
	return &SubmissionResult{StoredID: &idHex}, nil
}

func (b *Broker) countSubmission(kind, outcome string) {
	if b.metrics != nil {
		b.metrics.Submissions.WithLabelValues(kind, outcome).Inc()
	}
}

// validateWithTimeout runs fn with the latest chain timestamp, bounded by
// the configured validation_timeout_seconds.
func (b *Broker) validateWithTimeout(ctx context.Context, fn func(ctx context.Context, latestTS uint64) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, b.validationTimeout())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		latestTS, err := b.clock.LatestTimestamp(ctx)
		if err != nil {
			done <- fmt.Errorf("broker: %w: %w", errs.ErrTransport, err)
			return
		}
		done <- fn(ctx, latestTS)
	}()

	select {
	case err := <-done:
		if b.metrics != nil {
			b.metrics.ValidationTimeMS.Observe(float64(time.Since(start).Milliseconds()))
		}
		return err
	case <-ctx.Done():
		if b.metrics != nil {
			b.metrics.ValidationTimeMS.Observe(float64(time.Since(start).Milliseconds()))
		}
		return fmt.Errorf("broker: %w", errs.ErrValidationTimeout)
	}
}

// Query returns every non-expired stored offer for systemID.
func (b *Broker) Query(ctx context.Context, systemID systems.SystemId) ([]StoredOffer, error) {
	return b.store.QueryOffers(ctx, systemID)
}

// Subscribe joins the broadcast hub with the given mask.
func (b *Broker) Subscribe(mask uint32) *Subscription {
	return b.hub.Subscribe(mask)
}
