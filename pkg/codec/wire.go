package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
)

// RequestStreamRecord is the single record a WebSocket Binary frame carries
// for a ComputeRequest: system_id, the still-Brotli-compressed system
// payload, and the proof commitment + signature. Mirrors the
// `{system_id, system: Brotli(JSON(SystemParams)), proof_commitment,
// signature}` streaming wire form of spec.md §4.A. Gob substitutes for
// bincode (see DESIGN.md).
type RequestStreamRecord struct {
	SystemID   systems.SystemId
	System     []byte
	Commitment intent.RequestCommitment
	Signature  [65]byte
}

// OfferStreamRecord is RequestStreamRecord's offer-side counterpart.
type OfferStreamRecord struct {
	SystemID   systems.SystemId
	System     []byte
	Commitment intent.OfferCommitment
	Signature  [65]byte
}

// EncodeRequestStream gob-encodes rec into a single binary frame payload.
func EncodeRequestStream(rec RequestStreamRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("codec: encode request stream record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRequestStream reverses EncodeRequestStream.
func DecodeRequestStream(data []byte) (RequestStreamRecord, error) {
	var rec RequestStreamRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return rec, fmt.Errorf("codec: decode request stream record: %w", err)
	}
	return rec, nil
}

// EncodeOfferStream gob-encodes rec into a single binary frame payload.
func EncodeOfferStream(rec OfferStreamRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("codec: encode offer stream record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeOfferStream reverses EncodeOfferStream.
func DecodeOfferStream(data []byte) (OfferStreamRecord, error) {
	var rec OfferStreamRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return rec, fmt.Errorf("codec: decode offer stream record: %w", err)
	}
	return rec, nil
}
