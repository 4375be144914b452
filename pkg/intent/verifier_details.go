package intent

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// requestVerifierDetailsArgs describes the ABI tuple a ComputeRequest's
// ExtraData decodes into: all nine VerifierDetails fields.
var requestVerifierDetailsArgs = abi.Arguments{
	{Type: tAddress}, // verifier
	{Type: tBytes32}, // selector, padded to 32B (top 4 bytes significant)
	{Type: mustBool()},
	{Type: tUint64}, // inputsOffset
	{Type: tUint64}, // inputsLength
	{Type: mustBool()},
	{Type: tUint64}, // submittedPartialCommitmentResultOffset
	{Type: tUint64}, // submittedPartialCommitmentResultLength
	{Type: tBytes32}, // predeterminedPartialCommitment
}

// offerVerifierDetailsArgs describes the ABI tuple a ComputeOffer's
// ExtraData decodes into: the first five VerifierDetails fields only.
var offerVerifierDetailsArgs = abi.Arguments{
	{Type: tAddress},
	{Type: tBytes32},
	{Type: mustBool()},
	{Type: tUint64},
	{Type: tUint64},
}

func mustBool() abi.Type {
	t, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// EncodeRequestVerifierDetails ABI-encodes VerifierDetails for a request's ExtraData field.
func EncodeRequestVerifierDetails(d VerifierDetails) ([]byte, error) {
	var selector [32]byte
	copy(selector[:4], d.Selector[:])
	return requestVerifierDetailsArgs.Pack(
		d.Verifier, selector, d.IsShaCommitment, d.InputsOffset, d.InputsLength,
		d.HasPartialCommitmentResultCheck, d.SubmittedPartialCommitmentResultOffset,
		d.SubmittedPartialCommitmentResultLength, d.PredeterminedPartialCommitment,
	)
}

// EncodeOfferVerifierDetails ABI-encodes VerifierDetails for an offer's ExtraData field.
func EncodeOfferVerifierDetails(d VerifierDetails) ([]byte, error) {
	var selector [32]byte
	copy(selector[:4], d.Selector[:])
	return offerVerifierDetailsArgs.Pack(d.Verifier, selector, d.IsShaCommitment, d.InputsOffset, d.InputsLength)
}

// DecodeRequestVerifierDetails reverses EncodeRequestVerifierDetails.
func DecodeRequestVerifierDetails(data []byte) (VerifierDetails, error) {
	values, err := requestVerifierDetailsArgs.Unpack(data)
	if err != nil {
		return VerifierDetails{}, fmt.Errorf("intent: decode request verifier details: %w", err)
	}
	if len(values) != 9 {
		return VerifierDetails{}, fmt.Errorf("intent: expected 9 verifier-detail fields, got %d", len(values))
	}
	d := VerifierDetails{
		Verifier:                                values[0].(common.Address),
		IsShaCommitment:                         values[2].(bool),
		InputsOffset:                            values[3].(uint64),
		InputsLength:                            values[4].(uint64),
		HasPartialCommitmentResultCheck:         values[5].(bool),
		SubmittedPartialCommitmentResultOffset:  values[6].(uint64),
		SubmittedPartialCommitmentResultLength:  values[7].(uint64),
		PredeterminedPartialCommitment:          values[8].([32]byte),
	}
	sel := values[1].([32]byte)
	copy(d.Selector[:], sel[:4])
	return d, nil
}

// DecodeOfferVerifierDetails reverses EncodeOfferVerifierDetails.
func DecodeOfferVerifierDetails(data []byte) (VerifierDetails, error) {
	values, err := offerVerifierDetailsArgs.Unpack(data)
	if err != nil {
		return VerifierDetails{}, fmt.Errorf("intent: decode offer verifier details: %w", err)
	}
	if len(values) != 5 {
		return VerifierDetails{}, fmt.Errorf("intent: expected 5 verifier-detail fields, got %d", len(values))
	}
	d := VerifierDetails{
		Verifier:        values[0].(common.Address),
		IsShaCommitment: values[2].(bool),
		InputsOffset:    values[3].(uint64),
		InputsLength:    values[4].(uint64),
	}
	sel := values[1].([32]byte)
	copy(d.Selector[:], sel[:4])
	return d, nil
}
