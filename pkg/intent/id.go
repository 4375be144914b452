package intent

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	tAddress, _ = abi.NewType("address", "", nil)
	tUint256, _ = abi.NewType("uint256", "", nil)
	tUint128, _ = abi.NewType("uint128", "", nil)
	tUint64, _  = abi.NewType("uint64", "", nil)
	tUint32, _  = abi.NewType("uint32", "", nil)
	tBytes32, _ = abi.NewType("bytes32", "", nil)
	tBytes, _   = abi.NewType("bytes", "", nil)
)

// requestIDArgs is the abi.Arguments schema for the IntentId tuple of a
// ComputeRequest, in the declaration order mandated by spec.md §3:
// signer, market, nonce, rewardToken, maxRewardAmount, minRewardAmount,
// minimumStake, startAuctionTimestamp, endAuctionTimestamp, provingTime,
// inputsCommitment, keccak256(extraData), keccak256(signature).
//
// original_source's Rust tuple omits `signer` as a scalar element; spec.md
// §3 explicitly lists it as the first proof-commitment field and this
// implementation follows spec.md.
var requestIDArgs = abi.Arguments{
	{Type: tAddress}, // signer
	{Type: tAddress}, // market
	{Type: tUint256}, // nonce
	{Type: tAddress}, // rewardToken
	{Type: tUint256}, // maxRewardAmount
	{Type: tUint256}, // minRewardAmount
	{Type: tUint128}, // minimumStake
	{Type: tUint64},  // startAuctionTimestamp
	{Type: tUint64},  // endAuctionTimestamp
	{Type: tUint32},  // provingTime
	{Type: tBytes32}, // inputsCommitment
	{Type: tBytes32}, // keccak256(extraData)
	{Type: tBytes32}, // keccak256(signature)
}

var offerIDArgs = abi.Arguments{
	{Type: tAddress}, // signer
	{Type: tAddress}, // market
	{Type: tUint256}, // nonce
	{Type: tAddress}, // rewardToken
	{Type: tUint256}, // rewardAmount
	{Type: tAddress}, // stakeToken
	{Type: tUint256}, // stakeAmount
	{Type: tUint64},  // startAuctionTimestamp
	{Type: tUint64},  // endAuctionTimestamp
	{Type: tUint32},  // provingTime
	{Type: tBytes32}, // inputsCommitment
	{Type: tBytes32}, // keccak256(extraData)
	{Type: tBytes32}, // keccak256(signature)
}

// ComputeId returns the deterministic, signature-inclusive IntentId for a
// ComputeRequest: keccak256 of the ABI-encoded scalar-field tuple, with
// ExtraData and Signature first reduced to keccak256(abi_encode(bytes)).
func (r *ComputeRequest) ComputeId() (common.Hash, error) {
	extraDataHash := hashBytesArg(r.Commitment.ExtraData)
	sigHash := hashBytesArg(r.Signature[:])

	c := r.Commitment
	packed, err := requestIDArgs.Pack(
		c.Signer, c.Market, c.Nonce, c.RewardToken, c.MaxRewardAmount, c.MinRewardAmount,
		c.MinimumStake, c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.ProvingTime,
		c.InputsCommitment, extraDataHash, sigHash,
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// ComputeId returns the deterministic IntentId for a ComputeOffer, symmetric
// to ComputeRequest.ComputeId but substituting the fixed RewardAmount and
// the stake token/amount pair in place of the min/max reward fields.
func (o *ComputeOffer) ComputeId() (common.Hash, error) {
	extraDataHash := hashBytesArg(o.Commitment.ExtraData)
	sigHash := hashBytesArg(o.Signature[:])

	c := o.Commitment
	packed, err := offerIDArgs.Pack(
		c.Signer, c.Market, c.Nonce, c.RewardToken, c.RewardAmount, c.StakeToken, c.StakeAmount,
		c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.ProvingTime,
		c.InputsCommitment, extraDataHash, sigHash,
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// hashBytesArg mirrors Rust's keccak256(self.field.abi_encode()) for a
// `bytes` field: ABI-encode as a standalone dynamic `bytes` value, then hash.
func hashBytesArg(b []byte) [32]byte {
	encoded, err := abi.Arguments{{Type: tBytes}}.Pack(b)
	if err != nil {
		// tBytes encoding of a []byte literal cannot fail.
		panic(err)
	}
	return crypto.Keccak256Hash(encoded)
}
