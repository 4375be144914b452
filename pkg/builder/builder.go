// Package builder provides fluent constructors for ComputeRequest and
// ComputeOffer intents, grounded on
// original_source/crates/taralli-client/src/intent_builder/{mod,request,offer}.rs's
// BaseIntentBuilder/ComputeRequestBuilder/ComputeOfferBuilder chain: a
// shared base carrying signer/market/nonce/timestamp/system fields, with
// each intent kind adding its own reward/stake parameters before Build.
package builder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/nonce"
	"github.com/zkintents/taralli/pkg/systems"
)

// TimestampSource supplies the current chain timestamp used to derive
// auction windows from an auction length. Satisfied by *rpcclient.Client.
type TimestampSource interface {
	LatestTimestamp(ctx context.Context) (uint64, error)
}

// base holds the fields common to both ComputeRequest and ComputeOffer
// builders, mirroring BaseIntentBuilder.
type base struct {
	clock  TimestampSource
	nonces *nonce.Manager

	signer common.Address
	market common.Address

	auctionLength         uint32
	nonceValue            *big.Int
	startAuctionTimestamp uint64
	endAuctionTimestamp   uint64
	provingTime           uint32
	inputsCommitment      [32]byte
	extraData             []byte

	systemID SystemID
	system   systems.System
}

// SystemID re-exports systems.SystemId so callers of this package don't
// need a separate import for the common case of picking a system.
type SystemID = systems.SystemId

func newBase(clock TimestampSource, nonces *nonce.Manager, signer, market common.Address, systemID SystemID) base {
	return base{
		clock:    clock,
		nonces:   nonces,
		signer:   signer,
		market:   market,
		systemID: systemID,
	}
}

// setNewNonce reserves the next unused Permit2 nonce for the signer.
func (b *base) setNewNonce(ctx context.Context) error {
	n, err := b.nonces.GetNonce(ctx)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	b.nonceValue = n
	return nil
}

// setAuctionTimestampsFromAuctionLength reads the latest chain timestamp
// and derives [start, start+auctionLength) from it.
func (b *base) setAuctionTimestampsFromAuctionLength(ctx context.Context) error {
	if b.auctionLength == 0 {
		return fmt.Errorf("builder: auction length not set")
	}
	latest, err := b.clock.LatestTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("builder: %w: %w", errs.ErrTransport, err)
	}
	b.startAuctionTimestamp = latest
	b.endAuctionTimestamp = latest + uint64(b.auctionLength)
	return nil
}

// RequestBuilder assembles a ComputeRequest. Grounded on
// ComputeRequestBuilder; zero value is not usable, construct with
// NewRequestBuilder.
type RequestBuilder struct {
	base

	rewardToken     common.Address
	maxRewardAmount *big.Int
	minRewardAmount *big.Int
	minimumStake    *big.Int
}

// NewRequestBuilder constructs a RequestBuilder. nonces may be nil if the
// caller always supplies an explicit nonce via Nonce().
func NewRequestBuilder(clock TimestampSource, nonces *nonce.Manager, signer, market common.Address, systemID SystemID) *RequestBuilder {
	return &RequestBuilder{
		base:            newBase(clock, nonces, signer, market, systemID),
		maxRewardAmount: big.NewInt(0),
		minRewardAmount: big.NewInt(0),
		minimumStake:    big.NewInt(0),
	}
}

// SetNewNonce reserves the next unused Permit2 nonce for the signer.
func (rb *RequestBuilder) SetNewNonce(ctx context.Context) (*RequestBuilder, error) {
	if err := rb.setNewNonce(ctx); err != nil {
		return rb, err
	}
	return rb, nil
}

// SetAuctionTimestampsFromAuctionLength derives the auction window from the
// latest chain timestamp and the previously-set AuctionLength.
func (rb *RequestBuilder) SetAuctionTimestampsFromAuctionLength(ctx context.Context) (*RequestBuilder, error) {
	if err := rb.setAuctionTimestampsFromAuctionLength(ctx); err != nil {
		return rb, err
	}
	return rb, nil
}

func (rb *RequestBuilder) AuctionLength(seconds uint32) *RequestBuilder {
	rb.auctionLength = seconds
	return rb
}

func (rb *RequestBuilder) Nonce(n *big.Int) *RequestBuilder {
	rb.nonceValue = n
	return rb
}

func (rb *RequestBuilder) TimeParams(startTS, endTS uint64, provingTime uint32) *RequestBuilder {
	rb.startAuctionTimestamp = startTS
	rb.endAuctionTimestamp = endTS
	rb.provingTime = provingTime
	return rb
}

func (rb *RequestBuilder) VerificationCommitment(inputsCommitment [32]byte, extraData []byte) *RequestBuilder {
	rb.inputsCommitment = inputsCommitment
	rb.extraData = extraData
	return rb
}

func (rb *RequestBuilder) RewardParams(minimumStake, minReward, maxReward *big.Int) *RequestBuilder {
	rb.minimumStake = minimumStake
	rb.minRewardAmount = minReward
	rb.maxRewardAmount = maxReward
	return rb
}

func (rb *RequestBuilder) RewardToken(token common.Address) *RequestBuilder {
	rb.rewardToken = token
	return rb
}

func (rb *RequestBuilder) System(system systems.System) *RequestBuilder {
	rb.system = system
	return rb
}

// Build returns the ComputeRequest derived from the builder's current
// state, with a dummy 65-byte signature the signer must still overwrite.
func (rb *RequestBuilder) Build() (*intent.ComputeRequest, error) {
	if rb.system == nil {
		return nil, fmt.Errorf("builder: system params not set")
	}
	var sig [65]byte
	copy(sig[:], intent.DummySignature)
	return &intent.ComputeRequest{
		SystemID: rb.systemID,
		System:   rb.system,
		Commitment: intent.RequestCommitment{
			Signer:                rb.signer,
			Market:                rb.market,
			Nonce:                 rb.nonceValue,
			RewardToken:           rb.rewardToken,
			MaxRewardAmount:       rb.maxRewardAmount,
			MinRewardAmount:       rb.minRewardAmount,
			MinimumStake:          rb.minimumStake,
			StartAuctionTimestamp: rb.startAuctionTimestamp,
			EndAuctionTimestamp:   rb.endAuctionTimestamp,
			ProvingTime:           rb.provingTime,
			InputsCommitment:      rb.inputsCommitment,
			ExtraData:             rb.extraData,
		},
		Signature: sig,
	}, nil
}

// OfferBuilder assembles a ComputeOffer. Grounded on ComputeOfferBuilder.
type OfferBuilder struct {
	base

	rewardToken  common.Address
	rewardAmount *big.Int
	stakeToken   common.Address
	stakeAmount  *big.Int
}

// NewOfferBuilder constructs an OfferBuilder. nonces may be nil if the
// caller always supplies an explicit nonce via Nonce().
func NewOfferBuilder(clock TimestampSource, nonces *nonce.Manager, signer, market common.Address, systemID SystemID) *OfferBuilder {
	return &OfferBuilder{
		base:         newBase(clock, nonces, signer, market, systemID),
		rewardAmount: big.NewInt(0),
		stakeAmount:  big.NewInt(0),
	}
}

func (ob *OfferBuilder) SetNewNonce(ctx context.Context) (*OfferBuilder, error) {
	if err := ob.setNewNonce(ctx); err != nil {
		return ob, err
	}
	return ob, nil
}

func (ob *OfferBuilder) SetAuctionTimestampsFromAuctionLength(ctx context.Context) (*OfferBuilder, error) {
	if err := ob.setAuctionTimestampsFromAuctionLength(ctx); err != nil {
		return ob, err
	}
	return ob, nil
}

func (ob *OfferBuilder) AuctionLength(seconds uint32) *OfferBuilder {
	ob.auctionLength = seconds
	return ob
}

func (ob *OfferBuilder) Nonce(n *big.Int) *OfferBuilder {
	ob.nonceValue = n
	return ob
}

func (ob *OfferBuilder) TimeParams(startTS, endTS uint64, provingTime uint32) *OfferBuilder {
	ob.startAuctionTimestamp = startTS
	ob.endAuctionTimestamp = endTS
	ob.provingTime = provingTime
	return ob
}

func (ob *OfferBuilder) VerificationCommitment(inputsCommitment [32]byte, extraData []byte) *OfferBuilder {
	ob.inputsCommitment = inputsCommitment
	ob.extraData = extraData
	return ob
}

func (ob *OfferBuilder) TokenParams(rewardToken common.Address, rewardAmount *big.Int, stakeToken common.Address, stakeAmount *big.Int) *OfferBuilder {
	ob.rewardToken = rewardToken
	ob.rewardAmount = rewardAmount
	ob.stakeToken = stakeToken
	ob.stakeAmount = stakeAmount
	return ob
}

func (ob *OfferBuilder) System(system systems.System) *OfferBuilder {
	ob.system = system
	return ob
}

// Build returns the ComputeOffer derived from the builder's current state,
// with a dummy 65-byte signature the signer must still overwrite.
func (ob *OfferBuilder) Build() (*intent.ComputeOffer, error) {
	if ob.system == nil {
		return nil, fmt.Errorf("builder: system params not set")
	}
	var sig [65]byte
	copy(sig[:], intent.DummySignature)
	return &intent.ComputeOffer{
		SystemID: ob.systemID,
		System:   ob.system,
		Commitment: intent.OfferCommitment{
			Signer:                ob.signer,
			Market:                ob.market,
			Nonce:                 ob.nonceValue,
			RewardToken:           ob.rewardToken,
			RewardAmount:          ob.rewardAmount,
			StakeToken:            ob.stakeToken,
			StakeAmount:           ob.stakeAmount,
			StartAuctionTimestamp: ob.startAuctionTimestamp,
			EndAuctionTimestamp:   ob.endAuctionTimestamp,
			ProvingTime:           ob.provingTime,
			InputsCommitment:      ob.inputsCommitment,
			ExtraData:             ob.extraData,
		},
		Signature: sig,
	}, nil
}
