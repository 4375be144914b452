// Package bidder implements the time-decaying price curve and the atomic
// bid-submission sequence for both ComputeRequest and ComputeOffer intents.
// Grounded on
// original_source/crates/taralli-provider/src/bidder.rs's RequestBidder
// (calculate_current_reward/calculate_target_timestamp/submit_bid), with its
// U256 fixed-point math (scaled by 1e18) translated to math/big, and its
// tokio::time::sleep cooperative delay translated to a context-cancellable
// select. Transaction plumbing follows the teacher's pkg/rpcclient call/send
// split (ChainReader for reads, TransactionSender for the value-bearing bid).
package bidder

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
)

// scale is the fixed-point denominator the price curve's multiply-then-divide
// steps are scaled by, matching the Rust U256::from(1e18) in bidder.rs.
var scale = big.NewInt(1_000_000_000_000_000_000)

// CurrentReward returns the linearly-interpolated auction price at now,
// clamped to [min,max]. Mirrors bidder.rs's calculate_current_reward.
func CurrentReward(now, start, end uint64, min, max *big.Int) *big.Int {
	if now <= start {
		return new(big.Int).Set(min)
	}
	if now >= end {
		return new(big.Int).Set(max)
	}
	elapsed := new(big.Int).SetUint64(now - start)
	total := new(big.Int).SetUint64(end - start)
	span := new(big.Int).Sub(max, min)

	increaseFactor := new(big.Int).Div(new(big.Int).Mul(elapsed, scale), total)
	increaseAmount := new(big.Int).Div(new(big.Int).Mul(increaseFactor, span), scale)
	return new(big.Int).Add(min, increaseAmount)
}

// TargetTimestamp inverts CurrentReward: the timestamp at which the curve
// reaches target, given target within [min,max]. Mirrors
// calculate_target_timestamp.
func TargetTimestamp(target *big.Int, start, end uint64, min, max *big.Int) (uint64, error) {
	if target.Cmp(min) < 0 || target.Cmp(max) > 0 {
		return 0, fmt.Errorf("%w: target reward out of [min,max] bounds", errs.ErrTransactionSetup)
	}
	span := new(big.Int).Sub(max, min)
	if span.Sign() == 0 {
		// min == max: the curve is flat, any point on it satisfies target.
		return start, nil
	}
	total := new(big.Int).SetUint64(end - start)
	elapsed := new(big.Int).Div(new(big.Int).Mul(total, new(big.Int).Sub(target, min)), span)
	return start + elapsed.Uint64(), nil
}

// ChainReader is the minimal on-chain read surface the bidder needs: the
// activeProof{Request,Offer}Data dedup check. Satisfied by an adapter over
// *rpcclient.Client.
type ChainReader interface {
	CallContract(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, method string, params ...interface{}) ([]interface{}, error)
}

// BidReceipt summarizes a mined bid transaction.
type BidReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// TransactionSender submits the value-bearing bid call and waits for its
// receipt. Satisfied by an adapter over *rpcclient.Client.
type TransactionSender interface {
	SendTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, params ...interface{}) (*BidReceipt, error)
}

// defaultBidGasLimit is a conservative ceiling for the bid() call; concrete
// deployments may need WithGasLimit to raise it for verifier-heavy markets.
const defaultBidGasLimit = 400_000

// Bidder runs the submit-bid sequence against one market contract.
type Bidder struct {
	chain     ChainReader
	sender    TransactionSender
	marketABI abi.ABI
	market    common.Address
	gasLimit  uint64
	logger    *log.Logger
}

// Option configures a Bidder.
type Option func(*Bidder)

// WithGasLimit overrides the gas limit passed to the bid transaction.
func WithGasLimit(limit uint64) Option {
	return func(b *Bidder) { b.gasLimit = limit }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Bidder) { b.logger = l }
}

// New constructs a Bidder bound to one market contract.
func New(chain ChainReader, sender TransactionSender, marketABI abi.ABI, market common.Address, opts ...Option) *Bidder {
	b := &Bidder{
		chain:     chain,
		sender:    sender,
		marketABI: marketABI,
		market:    market,
		gasLimit:  defaultBidGasLimit,
		logger:    log.New(log.Writer(), "[Bidder] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// abiProofRequest mirrors RequestCommitment's field names so contractABI.Pack
// can marshal it against the bid() method's ProofRequest tuple input.
type abiProofRequest struct {
	Signer                common.Address
	Market                common.Address
	Nonce                 *big.Int
	RewardToken           common.Address
	MaxRewardAmount       *big.Int
	MinRewardAmount       *big.Int
	MinimumStake          *big.Int
	StartAuctionTimestamp uint64
	EndAuctionTimestamp   uint64
	ProvingTime           uint32
	InputsCommitment      [32]byte
	ExtraData             []byte
}

func toABIRequest(c intent.RequestCommitment) abiProofRequest {
	return abiProofRequest{
		Signer:                c.Signer,
		Market:                c.Market,
		Nonce:                 c.Nonce,
		RewardToken:           c.RewardToken,
		MaxRewardAmount:       c.MaxRewardAmount,
		MinRewardAmount:       c.MinRewardAmount,
		MinimumStake:          c.MinimumStake,
		StartAuctionTimestamp: c.StartAuctionTimestamp,
		EndAuctionTimestamp:   c.EndAuctionTimestamp,
		ProvingTime:           c.ProvingTime,
		InputsCommitment:      c.InputsCommitment,
		ExtraData:             c.ExtraData,
	}
}

// abiProofOffer is the offer-path counterpart of abiProofRequest.
type abiProofOffer struct {
	Signer                common.Address
	Market                common.Address
	Nonce                 *big.Int
	RewardToken           common.Address
	RewardAmount          *big.Int
	StakeToken            common.Address
	StakeAmount           *big.Int
	StartAuctionTimestamp uint64
	EndAuctionTimestamp   uint64
	ProvingTime           uint32
	InputsCommitment      [32]byte
	ExtraData             []byte
}

func toABIOffer(c intent.OfferCommitment) abiProofOffer {
	return abiProofOffer{
		Signer:                c.Signer,
		Market:                c.Market,
		Nonce:                 c.Nonce,
		RewardToken:           c.RewardToken,
		RewardAmount:          c.RewardAmount,
		StakeToken:            c.StakeToken,
		StakeAmount:           c.StakeAmount,
		StartAuctionTimestamp: c.StartAuctionTimestamp,
		EndAuctionTimestamp:   c.EndAuctionTimestamp,
		ProvingTime:           c.ProvingTime,
		InputsCommitment:      c.InputsCommitment,
		ExtraData:             c.ExtraData,
	}
}

// SubmitBidForRequest runs the request-path bid sequence from spec.md §4.H:
// window check, an optional cancellable sleep to the target-reward
// timestamp, the already-bid dedup check, then a value-bearing bid
// transaction carrying minimumStake. targetAmount may be nil to skip the
// price-timing step and bid immediately.
func (b *Bidder) SubmitBidForRequest(ctx context.Context, req *intent.ComputeRequest, privateKeyHex string, targetAmount *big.Int, now uint64) (*BidReceipt, error) {
	c := req.Commitment
	if err := checkAuctionWindow(now, c.StartAuctionTimestamp, c.EndAuctionTimestamp); err != nil {
		return nil, err
	}

	if targetAmount != nil {
		current := CurrentReward(now, c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.MinRewardAmount, c.MaxRewardAmount)
		if current.Cmp(targetAmount) < 0 {
			targetTS, err := TargetTimestamp(targetAmount, c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.MinRewardAmount, c.MaxRewardAmount)
			if err != nil {
				return nil, err
			}
			b.logger.Printf("waiting for reward to reach %s (target ts %d)", targetAmount, targetTS)
			if err := sleepUntil(ctx, now, targetTS); err != nil {
				return nil, err
			}
		}
	}

	intentID, err := req.ComputeId()
	if err != nil {
		return nil, fmt.Errorf("%w: compute intent id: %w", errs.ErrTransactionSetup, err)
	}
	if err := b.checkNotAlreadyBid(ctx, "activeProofRequestData", intentID); err != nil {
		return nil, err
	}

	receipt, err := b.sender.SendTransaction(ctx, b.market, b.marketABI, privateKeyHex, "bid", c.MinimumStake, b.gasLimit, toABIRequest(c), req.Signature[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransactionFailure, err)
	}
	return receipt, nil
}

// SubmitBidForOffer runs the offer-path bid sequence: identical window and
// dedup checks, no price math (reward is fixed), and a zero-value bid
// transaction.
func (b *Bidder) SubmitBidForOffer(ctx context.Context, off *intent.ComputeOffer, privateKeyHex string, now uint64) (*BidReceipt, error) {
	c := off.Commitment
	if err := checkAuctionWindow(now, c.StartAuctionTimestamp, c.EndAuctionTimestamp); err != nil {
		return nil, err
	}

	intentID, err := off.ComputeId()
	if err != nil {
		return nil, fmt.Errorf("%w: compute intent id: %w", errs.ErrTransactionSetup, err)
	}
	if err := b.checkNotAlreadyBid(ctx, "activeProofOfferData", intentID); err != nil {
		return nil, err
	}

	receipt, err := b.sender.SendTransaction(ctx, b.market, b.marketABI, privateKeyHex, "bid", big.NewInt(0), b.gasLimit, toABIOffer(c), off.Signature[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransactionFailure, err)
	}
	return receipt, nil
}

func checkAuctionWindow(now, start, end uint64) error {
	if now < start {
		return fmt.Errorf("%w: auction has not started", errs.ErrTransactionSetup)
	}
	if now > end {
		return fmt.Errorf("%w: auction has expired", errs.ErrTransactionSetup)
	}
	return nil
}

// checkNotAlreadyBid reads the market's active-slot accessor for intentID
// and rejects if a requester has already claimed it.
func (b *Bidder) checkNotAlreadyBid(ctx context.Context, method string, intentID common.Hash) error {
	outputs, err := b.chain.CallContract(ctx, b.market, b.marketABI, method, intentID)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrTransactionSetup, method, err)
	}
	if len(outputs) == 0 {
		return fmt.Errorf("%w: %s returned no outputs", errs.ErrTransactionSetup, method)
	}
	requester, ok := outputs[0].(common.Address)
	if !ok {
		return fmt.Errorf("%w: %s: unexpected requester field type %T", errs.ErrTransactionSetup, method, outputs[0])
	}
	if requester != (common.Address{}) {
		return fmt.Errorf("%w: %s already claimed by %s", errs.ErrAlreadyBid, method, requester)
	}
	return nil
}

// sleepUntil blocks until target (a unix second timestamp), or returns early
// with ctx's error if ctx is cancelled first.
func sleepUntil(ctx context.Context, now, target uint64) error {
	if target <= now {
		return nil
	}
	wait := time.Duration(target-now) * time.Second
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
