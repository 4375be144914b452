// Package codec implements the wire forms intents travel in: the
// multipart submission form a client posts to the broker, the Brotli stream
// codec for the heavy per-system payload, and the gob-encoded streaming
// wire form a subscriber reads off the WebSocket. Grounded on spec.md §4.A
// and
// original_source/crates/taralli-primitives/src/{intents,compression_utils}/*.rs
// for part shapes and compression defaults; bincode has no equivalent
// library in this pack, so the streaming wire form uses encoding/gob (see
// DESIGN.md).
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
)

// PartialComputeRequest is the `partial_request` multipart part: every
// ComputeRequest field except the (separately transmitted, Brotli-compressed)
// system payload.
type PartialComputeRequest struct {
	SystemID     systems.SystemId         `json:"system_id"`
	ProofRequest intent.RequestCommitment `json:"proof_request"`
	Signature    hexutil.Bytes            `json:"signature"`
}

// PartialComputeOffer is the `partial_offer` multipart part.
type PartialComputeOffer struct {
	SystemID   systems.SystemId       `json:"system_id"`
	ProofOffer intent.OfferCommitment `json:"proof_offer"`
	Signature  hexutil.Bytes          `json:"signature"`
}

// ToPartial strips req's system payload into a PartialComputeRequest fit for
// the `partial_request` multipart part.
func ToPartial(req *intent.ComputeRequest) PartialComputeRequest {
	return PartialComputeRequest{
		SystemID:     req.SystemID,
		ProofRequest: req.Commitment,
		Signature:    hexutil.Bytes(req.Signature[:]),
	}
}

// ToPartialOffer strips off's system payload into a PartialComputeOffer.
func ToPartialOffer(off *intent.ComputeOffer) PartialComputeOffer {
	return PartialComputeOffer{
		SystemID:   off.SystemID,
		ProofOffer: off.Commitment,
		Signature:  hexutil.Bytes(off.Signature[:]),
	}
}

// Signature65 copies p's signature into a fixed [65]byte array, the form
// ComputeRequest.Signature requires.
func (p PartialComputeRequest) Signature65() ([65]byte, error) {
	return to65(p.Signature)
}

// Signature65 copies p's signature into a fixed [65]byte array.
func (p PartialComputeOffer) Signature65() ([65]byte, error) {
	return to65(p.Signature)
}

func to65(b []byte) ([65]byte, error) {
	var out [65]byte
	if len(b) != 65 {
		return out, fmt.Errorf("codec: signature must be 65 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// MarshalPartialRequest encodes p as the `partial_request` JSON text part.
func MarshalPartialRequest(p PartialComputeRequest) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPartialRequest decodes the `partial_request` JSON text part.
func UnmarshalPartialRequest(data []byte) (PartialComputeRequest, error) {
	var p PartialComputeRequest
	err := json.Unmarshal(data, &p)
	return p, err
}

// MarshalPartialOffer encodes p as the `partial_offer` JSON text part.
func MarshalPartialOffer(p PartialComputeOffer) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPartialOffer decodes the `partial_offer` JSON text part.
func UnmarshalPartialOffer(data []byte) (PartialComputeOffer, error) {
	var p PartialComputeOffer
	err := json.Unmarshal(data, &p)
	return p, err
}
