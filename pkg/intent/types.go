// Package intent defines the two ComputeIntent variants (ComputeRequest,
// ComputeOffer), their deterministic IntentId hash, and the Permit2-style
// typed-data digest they are signed over. Grounded on
// original_source/crates/taralli-primitives/src/intents/{request,offer}.rs
// and src/utils.rs.
package intent

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/systems"
)

// RequestCommitment is the on-chain-visible struct inside a ComputeRequest.
// Field order matters: it is also the IntentId hashing order (see id.go).
type RequestCommitment struct {
	Signer                 common.Address
	Market                 common.Address
	Nonce                  *big.Int
	RewardToken            common.Address
	MaxRewardAmount        *big.Int
	MinRewardAmount        *big.Int
	MinimumStake           *big.Int // u128
	StartAuctionTimestamp  uint64
	EndAuctionTimestamp    uint64
	ProvingTime            uint32
	InputsCommitment       [32]byte
	ExtraData              []byte
}

// OfferCommitment is the on-chain-visible struct inside a ComputeOffer.
// Identical to RequestCommitment except a single fixed RewardAmount in
// place of the min/max pair, plus a stake token/amount pair.
type OfferCommitment struct {
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

// DummySignature is the 65-byte placeholder the builder installs before the
// signer overwrites it (spec.md §4.D).
var DummySignature = make([]byte, 65)

// ComputeRequest is a signed request for proof computation: "I will pay
// between MinRewardAmount and MaxRewardAmount for a valid proof of this
// system, decided by auction."
type ComputeRequest struct {
	SystemID   systems.SystemId
	System     systems.System
	Commitment RequestCommitment
	Signature  [65]byte
}

// ComputeOffer is a signed offer to supply proof computation for a fixed
// reward, persisted by the broker until claimed or expired.
type ComputeOffer struct {
	SystemID   systems.SystemId
	System     systems.System
	Commitment OfferCommitment
	Signature  [65]byte
}

// VerifierDetails is the ABI-encoded struct carried inside ExtraData: the
// address and calldata layout of the verifier the system will call at
// resolve time. Offers omit the four partial-commitment-result fields.
type VerifierDetails struct {
	Verifier        common.Address
	Selector        [4]byte
	IsShaCommitment bool
	InputsOffset    uint64
	InputsLength    uint64

	// Request-only fields; zero values for offers.
	HasPartialCommitmentResultCheck        bool
	SubmittedPartialCommitmentResultOffset uint64
	SubmittedPartialCommitmentResultLength uint64
	PredeterminedPartialCommitment         [32]byte
}
