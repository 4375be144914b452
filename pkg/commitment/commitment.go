// Package commitment computes the SHA-256 inputs_commitment every intent
// carries: a fixed-size binding to the off-chain public inputs a verifier
// contract checks a proof against. Grounded on
// original_source/crates/taralli-requester/examples/aligned_layer_requester.rs,
// which hashes the ABI-encoded public-inputs preimage with Sha256 before
// calling set_verification_commitment_params; generalized here to any
// system's input bytes rather than one example's hardcoded preimage.
package commitment

import "crypto/sha256"

// ComputeInputsCommitment returns the SHA-256 digest of preimage, the value
// every ComputeRequest/ComputeOffer stores as InputsCommitment.
func ComputeInputsCommitment(preimage []byte) [32]byte {
	return sha256.Sum256(preimage)
}
