package intent

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Permit2Address is the fixed address of the canonical Permit2 deployment,
// reused by this marketplace for its nonce bitmap. Compile-time constant per
// original_source/crates/taralli-primitives/src/utils.rs.
var Permit2Address = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

// Permit2DomainSeparator is the EIP-712 domain separator of the Permit2
// deployment. Compile-time constant, identical across chains that share the
// canonical Permit2 bytecode.
var Permit2DomainSeparator = common.HexToHash("0x2be86a484194028b8e9b1ac40deffff8868bf4ae32fd0a7db12030c6a18227e")

const (
	// tokenPermissionsTypeString is the EIP-712 sub-type for the permitted token/amount pair.
	tokenPermissionsTypeString = "TokenPermissions(address token,uint256 amount)"

	// permitWitnessTransferFromTypehashStub is the prefix of the
	// PermitWitnessTransferFrom type string; the witness type name and
	// definition are appended by the caller to form the full EIP-712 type.
	permitWitnessTransferFromTypehashStub = "PermitWitnessTransferFrom(TokenPermissions permitted,address spender,uint256 nonce,uint256 deadline,"

	// RequestTypeString and OfferTypeString are the EIP-712 struct
	// definitions for ProofRequest/ProofOffer, transcribed from the
	// FULL_PROOF_{REQUEST,OFFER}_WITNESS_TYPE_STRING_STUB comments in
	// original_source/crates/taralli-primitives/src/utils.rs.
	RequestTypeString = "ProofRequest(address signer,address market,uint256 nonce,address token,uint256 maxRewardAmount,uint256 minRewardAmount,uint128 minimumStake,uint64 startAuctionTimestamp,uint64 endAuctionTimestamp,uint32 provingTime,bytes32 inputsCommitment,bytes extraData)"
	OfferTypeString   = "ProofOffer(address signer,address market,uint256 nonce,address rewardToken,uint256 rewardAmount,address stakeToken,uint256 stakeAmount,uint64 startAuctionTimestamp,uint64 endAuctionTimestamp,uint32 provingTime,bytes32 inputsCommitment,bytes extraData)"

	// RequestWitnessTypeDef/OfferWitnessTypeDef are the "witness)" + struct
	// definition fragments witnessTypeHash appends between the
	// PermitWitnessTransferFrom stub and the trailing TokenPermissions
	// definition, per EIP-712's alphabetical-referenced-types rule
	// (ProofRequest/ProofOffer sort before TokenPermissions).
	RequestWitnessTypeDef = "ProofRequest witness)" + RequestTypeString
	OfferWitnessTypeDef   = "ProofOffer witness)" + OfferTypeString
)

var (
	// RequestTypeHash/OfferTypeHash are the struct typehashes passed to
	// RequestCommitment.CommitmentHash/OfferCommitment.CommitmentHash.
	RequestTypeHash = crypto.Keccak256Hash([]byte(RequestTypeString))
	OfferTypeHash   = crypto.Keccak256Hash([]byte(OfferTypeString))
)

var (
	tokenPermissionsTypeHash = crypto.Keccak256Hash([]byte(tokenPermissionsTypeString))
)

// HashTypedData computes keccak256("\x19\x01" ++ domainSeparator ++ dataHash),
// the final EIP-712 digest presented to the signer. Mirrors
// original_source's hash_typed_data.
func HashTypedData(domainSeparator, dataHash common.Hash) common.Hash {
	preimage := make([]byte, 0, 2+32+32)
	preimage = append(preimage, 0x19, 0x01)
	preimage = append(preimage, domainSeparator.Bytes()...)
	preimage = append(preimage, dataHash.Bytes()...)
	return crypto.Keccak256Hash(preimage)
}

// tokenPermissionsHash hashes the TokenPermissions witness leaf:
// keccak256(abi.encode(TOKEN_PERMISSIONS_TYPEHASH, token, amount)).
func tokenPermissionsHash(token common.Address, amount *big.Int) common.Hash {
	args := abi.Arguments{{Type: tBytes32}, {Type: tAddress}, {Type: tUint256}}
	packed, err := args.Pack(tokenPermissionsTypeHash, token, amount)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// witnessTypeHash computes the full PermitWitnessTransferFrom typehash for a
// given witness type definition fragment, per the Permit2
// witness-transfer-from schema.
func witnessTypeHash(witnessTypeDef string) common.Hash {
	full := permitWitnessTransferFromTypehashStub + witnessTypeDef + "TokenPermissions(address token,uint256 amount)"
	return crypto.Keccak256Hash([]byte(full))
}

// witnessHash computes the EIP-712 struct hash for a PermitWitnessTransferFrom
// message whose witness is the proof commitment identified by commitmentHash
// (the caller hashes the concrete RequestCommitment/OfferCommitment struct
// per its own EIP-712 type definition and passes the result here).
func witnessHash(
	token common.Address, amount *big.Int,
	spender common.Address, nonce *big.Int, deadline *big.Int,
	witnessTypeDef string, commitmentHash common.Hash,
) common.Hash {
	typeHash := witnessTypeHash(witnessTypeDef)
	permitted := tokenPermissionsHash(token, amount)

	args := abi.Arguments{
		{Type: tBytes32}, // typeHash
		{Type: tBytes32}, // permitted (TokenPermissions hash)
		{Type: tAddress}, // spender
		{Type: tUint256}, // nonce
		{Type: tUint256}, // deadline
		{Type: tBytes32}, // witness (the commitment's own struct hash)
	}
	packed, err := args.Pack(typeHash, permitted, spender, nonce, deadline, commitmentHash)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// Permit2Digest computes the final signing digest for a ComputeRequest: the
// proof commitment acts as the Permit2 witness, the market contract is the
// spender, and deadline == endAuctionTimestamp (a request's auction cannot
// usefully outlive its own signature).
func (r *ComputeRequest) Permit2Digest(witnessTypeDef string, commitmentHash common.Hash) common.Hash {
	c := r.Commitment
	deadline := new(big.Int).SetUint64(c.EndAuctionTimestamp)
	dataHash := witnessHash(c.RewardToken, c.MaxRewardAmount, c.Market, c.Nonce, deadline, witnessTypeDef, commitmentHash)
	return HashTypedData(Permit2DomainSeparator, dataHash)
}

// Permit2Digest computes the final signing digest for a ComputeOffer,
// symmetric to ComputeRequest.Permit2Digest.
func (o *ComputeOffer) Permit2Digest(witnessTypeDef string, commitmentHash common.Hash) common.Hash {
	c := o.Commitment
	deadline := new(big.Int).SetUint64(c.EndAuctionTimestamp)
	dataHash := witnessHash(c.StakeToken, c.StakeAmount, c.Market, c.Nonce, deadline, witnessTypeDef, commitmentHash)
	return HashTypedData(Permit2DomainSeparator, dataHash)
}

// SigningDigest computes the full Permit2 EIP-712 digest a signer must sign
// over for this request, wiring RequestTypeHash/RequestWitnessTypeDef in so
// callers never have to know the witness-type plumbing.
func (r *ComputeRequest) SigningDigest() common.Hash {
	commitmentHash := r.Commitment.CommitmentHash(RequestTypeHash)
	return r.Permit2Digest(RequestWitnessTypeDef, commitmentHash)
}

// SigningDigest computes the full Permit2 EIP-712 digest a signer must sign
// over for this offer, symmetric to ComputeRequest.SigningDigest.
func (o *ComputeOffer) SigningDigest() common.Hash {
	commitmentHash := o.Commitment.CommitmentHash(OfferTypeHash)
	return o.Permit2Digest(OfferWitnessTypeDef, commitmentHash)
}

// CommitmentHash computes the EIP-712 struct hash of a RequestCommitment
// under the given struct typehash — the leaf that
// ComputeRequest.Permit2Digest embeds as its witness.
func (c *RequestCommitment) CommitmentHash(typeHash common.Hash) common.Hash {
	extraDataHash := hashBytesArg(c.ExtraData)
	args := abi.Arguments{
		{Type: tBytes32}, {Type: tAddress}, {Type: tAddress}, {Type: tUint256}, {Type: tAddress},
		{Type: tUint256}, {Type: tUint256}, {Type: tUint128}, {Type: tUint64}, {Type: tUint64},
		{Type: tUint32}, {Type: tBytes32}, {Type: tBytes32},
	}
	packed, err := args.Pack(
		typeHash, c.Signer, c.Market, c.Nonce, c.RewardToken, c.MaxRewardAmount, c.MinRewardAmount,
		c.MinimumStake, c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.ProvingTime,
		c.InputsCommitment, extraDataHash,
	)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// CommitmentHash computes the EIP-712 struct hash of an OfferCommitment.
func (c *OfferCommitment) CommitmentHash(typeHash common.Hash) common.Hash {
	extraDataHash := hashBytesArg(c.ExtraData)
	args := abi.Arguments{
		{Type: tBytes32}, {Type: tAddress}, {Type: tAddress}, {Type: tUint256}, {Type: tAddress},
		{Type: tUint256}, {Type: tAddress}, {Type: tUint256}, {Type: tUint64}, {Type: tUint64},
		{Type: tUint32}, {Type: tBytes32}, {Type: tBytes32},
	}
	packed, err := args.Pack(
		typeHash, c.Signer, c.Market, c.Nonce, c.RewardToken, c.RewardAmount, c.StakeToken, c.StakeAmount,
		c.StartAuctionTimestamp, c.EndAuctionTimestamp, c.ProvingTime,
		c.InputsCommitment, extraDataHash,
	)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}
