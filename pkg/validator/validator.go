// Package validator implements the stateless policy engine every inbound
// intent is checked against: system support, market address, time bounds,
// nonce (pluggable hook), economic bounds, verifier-details match, and
// signature. Grounded on
// original_source/crates/taralli-primitives/src/validation/{mod,request,offer,registry}.rs.
package validator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
)

// BaseValidationConfig holds the shared time/system bounds every system's
// validator consults. Defaults per spec.md §4.B:
// minimum_proving_time=30s, maximum_start_delay=300s.
type BaseValidationConfig struct {
	MinimumProvingTime uint32
	MaximumStartDelay  uint64
	SupportedSystems   []systems.SystemId
}

// DefaultBaseValidationConfig returns the spec-mandated defaults.
func DefaultBaseValidationConfig() BaseValidationConfig {
	return BaseValidationConfig{
		MinimumProvingTime: 30,
		MaximumStartDelay:  300,
		SupportedSystems:   systems.All(),
	}
}

func (c BaseValidationConfig) supports(id systems.SystemId) bool {
	for _, s := range c.SupportedSystems {
		if s == id {
			return true
		}
	}
	return false
}

// AmountConfig bounds the economic fields, per-intent-kind.
type AmountConfig struct {
	MaximumAllowedStake  *big.Int // request: minimumStake ceiling
	MaximumAllowedReward *big.Int // offer: rewardAmount ceiling
	MinimumAllowedStake  *big.Int // offer: stakeAmount floor
}

// NonceChecker is the pluggable hook spec.md §4.B/§9 leaves unspecified:
// whether the broker should RPC-check nonceBitmap before accepting. The
// default registry uses a no-op checker.
type NonceChecker interface {
	CheckNonce(ctx context.Context, signer common.Address, nonce *big.Int) error
}

type noopNonceChecker struct{}

func (noopNonceChecker) CheckNonce(context.Context, common.Address, *big.Int) error { return nil }

// IntentValidator is consulted for every inbound intent of a given SystemId.
// StandardValidator runs the shared base pipeline (System/Market/Time/Nonce)
// inside each method, followed by the intent-kind-specific amount and
// verifier-constraint checks.
type IntentValidator interface {
	ValidateRequest(ctx context.Context, req *intent.ComputeRequest, latestTS uint64, expectedMarket common.Address) error
	ValidateOffer(ctx context.Context, off *intent.ComputeOffer, latestTS uint64, expectedMarket common.Address) error
}

// StandardValidator is the default IntentValidator: base pipeline plus
// per-system VerifierConstraints and AmountConfig, mirroring
// taralli-primitives's StandardValidatorRegistry entries.
type StandardValidator struct {
	Base         BaseValidationConfig
	Amounts      AmountConfig
	Constraints  systems.VerifierConstraints
	NonceChecker NonceChecker
}

// NewStandardValidator constructs a validator with spec defaults and a
// no-op nonce checker.
func NewStandardValidator(constraints systems.VerifierConstraints, amounts AmountConfig) *StandardValidator {
	return &StandardValidator{
		Base:         DefaultBaseValidationConfig(),
		Amounts:      amounts,
		Constraints:  constraints,
		NonceChecker: noopNonceChecker{},
	}
}

func (v *StandardValidator) ValidateRequest(ctx context.Context, req *intent.ComputeRequest, latestTS uint64, expectedMarket common.Address) error {
	if err := v.validateSystem(req.SystemID, req.System); err != nil {
		return err
	}
	c := req.Commitment
	if err := v.validateMarket(c.Market, expectedMarket); err != nil {
		return err
	}
	if err := v.validateTime(latestTS, c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.ProvingTime); err != nil {
		return err
	}
	if err := v.NonceChecker.CheckNonce(ctx, c.Signer, c.Nonce); err != nil {
		return err
	}
	if c.MinRewardAmount.Cmp(c.MaxRewardAmount) > 0 {
		return errs.NewValidationError(errs.KindBadAmounts, "minRewardAmount > maxRewardAmount")
	}
	if v.Amounts.MaximumAllowedStake != nil && c.MinimumStake.Cmp(v.Amounts.MaximumAllowedStake) > 0 {
		return errs.NewValidationError(errs.KindBadAmounts, "minimumStake exceeds maximum allowed stake")
	}
	details, err := intent.DecodeRequestVerifierDetails(c.ExtraData)
	if err != nil {
		return errs.NewValidationError(errs.KindVerifierMismatch, err.Error())
	}
	if err := matchRequestConstraints(v.Constraints, details); err != nil {
		return err
	}
	return v.validateSignature(req.SigningDigest(), req.Signature, c.Signer)
}

func (v *StandardValidator) ValidateOffer(ctx context.Context, off *intent.ComputeOffer, latestTS uint64, expectedMarket common.Address) error {
	if err := v.validateSystem(off.SystemID, off.System); err != nil {
		return err
	}
	c := off.Commitment
	if err := v.validateMarket(c.Market, expectedMarket); err != nil {
		return err
	}
	if err := v.validateTime(latestTS, c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.ProvingTime); err != nil {
		return err
	}
	if err := v.NonceChecker.CheckNonce(ctx, c.Signer, c.Nonce); err != nil {
		return err
	}
	if v.Amounts.MaximumAllowedReward != nil && c.RewardAmount.Cmp(v.Amounts.MaximumAllowedReward) > 0 {
		return errs.NewValidationError(errs.KindBadAmounts, "rewardAmount exceeds maximum allowed reward")
	}
	if v.Amounts.MinimumAllowedStake != nil && c.StakeAmount.Cmp(v.Amounts.MinimumAllowedStake) < 0 {
		return errs.NewValidationError(errs.KindBadAmounts, "stakeAmount below minimum allowed stake")
	}
	details, err := intent.DecodeOfferVerifierDetails(c.ExtraData)
	if err != nil {
		return errs.NewValidationError(errs.KindVerifierMismatch, err.Error())
	}
	if err := matchOfferConstraints(v.Constraints, details); err != nil {
		return err
	}
	return v.validateSignature(off.SigningDigest(), off.Signature, c.Signer)
}

func (v *StandardValidator) validateSystem(id systems.SystemId, sys systems.System) error {
	if !v.Base.supports(id) {
		return errs.NewValidationError(errs.KindUnsupportedSystem, id.String())
	}
	if sys.SystemID() != id {
		return errs.NewValidationError(errs.KindUnsupportedSystem, "system_id mismatch between wrapper and payload")
	}
	if err := sys.ValidateInputs(); err != nil {
		return errs.NewValidationError(errs.KindUnsupportedSystem, err.Error())
	}
	return nil
}

func (v *StandardValidator) validateMarket(market, expected common.Address) error {
	if market != expected {
		return errs.NewValidationError(errs.KindBadMarket, "market address does not match expected")
	}
	return nil
}

func (v *StandardValidator) validateTime(latestTS, start, end uint64, provingTime uint32) error {
	lowerBound := int64(start) - int64(v.Base.MaximumStartDelay)
	if int64(latestTS) < lowerBound || latestTS >= end {
		return errs.NewValidationError(errs.KindBadTimestamps, "latest timestamp outside auction window")
	}
	if provingTime < v.Base.MinimumProvingTime {
		return errs.NewValidationError(errs.KindBadTimestamps, "provingTime below minimum")
	}
	return nil
}

func (v *StandardValidator) validateSignature(digest common.Hash, sig [65]byte, expectedSigner common.Address) error {
	recovered, err := recoverSigner(digest, sig)
	if err != nil {
		return errs.NewValidationError(errs.KindBadSignature, err.Error())
	}
	if recovered != expectedSigner {
		return errs.NewValidationError(errs.KindBadSignature, "recovered signer does not match proof_commitment.signer")
	}
	return nil
}

func recoverSigner(digest common.Hash, sig [65]byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest.Bytes(), sig[:])
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func matchRequestConstraints(c systems.VerifierConstraints, d intent.VerifierDetails) error {
	if len(c.Verifier) == 20 && common.BytesToAddress(c.Verifier) != d.Verifier {
		return errs.NewValidationError(errs.KindVerifierMismatch, "verifier address mismatch")
	}
	if c.Selector != nil && *c.Selector != d.Selector {
		return errs.NewValidationError(errs.KindVerifierMismatch, "function selector mismatch")
	}
	if c.IsShaCommitment != nil && *c.IsShaCommitment != d.IsShaCommitment {
		return errs.NewValidationError(errs.KindVerifierMismatch, "sha-commitment flag mismatch")
	}
	if c.InputsOffset != nil && *c.InputsOffset != d.InputsOffset {
		return errs.NewValidationError(errs.KindVerifierMismatch, "inputs offset mismatch")
	}
	if c.InputsLength != nil && *c.InputsLength != d.InputsLength {
		return errs.NewValidationError(errs.KindVerifierMismatch, "inputs length mismatch")
	}
	if c.HasPartialCommitmentResultCheck != nil && *c.HasPartialCommitmentResultCheck != d.HasPartialCommitmentResultCheck {
		return errs.NewValidationError(errs.KindVerifierMismatch, "partial-commitment-result-check flag mismatch")
	}
	if c.SubmittedPartialCommitmentResultOffset != nil && *c.SubmittedPartialCommitmentResultOffset != d.SubmittedPartialCommitmentResultOffset {
		return errs.NewValidationError(errs.KindVerifierMismatch, "partial-commitment result offset mismatch")
	}
	if c.SubmittedPartialCommitmentResultLength != nil && *c.SubmittedPartialCommitmentResultLength != d.SubmittedPartialCommitmentResultLength {
		return errs.NewValidationError(errs.KindVerifierMismatch, "partial-commitment result length mismatch")
	}
	if len(c.PredeterminedPartialCommitment) == 32 && common.BytesToHash(c.PredeterminedPartialCommitment) != common.Hash(d.PredeterminedPartialCommitment) {
		return errs.NewValidationError(errs.KindVerifierMismatch, "predetermined partial commitment mismatch")
	}
	return nil
}

func matchOfferConstraints(c systems.VerifierConstraints, d intent.VerifierDetails) error {
	if len(c.Verifier) == 20 && common.BytesToAddress(c.Verifier) != d.Verifier {
		return errs.NewValidationError(errs.KindVerifierMismatch, "verifier address mismatch")
	}
	if c.Selector != nil && *c.Selector != d.Selector {
		return errs.NewValidationError(errs.KindVerifierMismatch, "function selector mismatch")
	}
	if c.IsShaCommitment != nil && *c.IsShaCommitment != d.IsShaCommitment {
		return errs.NewValidationError(errs.KindVerifierMismatch, "sha-commitment flag mismatch")
	}
	return nil
}
