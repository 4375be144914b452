package systems

import (
	"encoding/json"
	"fmt"
)

// VerifierConstraints is the per-system policy a validator enforces against
// the decoded verifier-details embedded in extraData. Each field is either
// Some(x) (equality required) or nil (accept any) — mirrors
// taralli-primitives/src/systems/mod.rs's VerifierConstraints.
type VerifierConstraints struct {
	Verifier               []byte  // expected verifier contract address (20B), nil = accept any
	Selector               *[4]byte
	IsShaCommitment        *bool
	InputsOffset           *uint64
	InputsLength           *uint64
	// Request-only constraints (nil for offers)
	HasPartialCommitmentResultCheck            *bool
	SubmittedPartialCommitmentResultOffset     *uint64
	SubmittedPartialCommitmentResultLength     *uint64
	PredeterminedPartialCommitment              []byte
}

// RawSystemParams holds an opaque per-system payload prior to typed
// dispatch: the raw ELF/r1cs/wasm bytes (Risc0/Sp1/Gnark/Arkworks) or a
// JSON blob (AlignedLayer), tagged by SystemId.
type RawSystemParams struct {
	ID     SystemId
	Bytes  []byte          // opaque program bytes, when applicable
	Params json.RawMessage // self-describing JSON form, when applicable
}

func (r *RawSystemParams) SystemID() SystemId { return r.ID }

func (r *RawSystemParams) Inputs() []byte {
	if len(r.Bytes) > 0 {
		return r.Bytes
	}
	return []byte(r.Params)
}

func (r *RawSystemParams) ValidateInputs() error {
	if len(r.Bytes) == 0 && len(r.Params) == 0 {
		return fmt.Errorf("systems: %s: empty system payload", r.ID)
	}
	switch r.ID {
	case Risc0, Sp1, Gnark, Arkworks:
		if len(r.Bytes) == 0 {
			return fmt.Errorf("systems: %s: missing program bytes (ELF/r1cs/wasm)", r.ID)
		}
	case AlignedLayer:
		if len(r.Params) == 0 {
			return fmt.Errorf("systems: %s: missing JSON params", r.ID)
		}
	}
	return nil
}

// MarshalJSON serializes to the self-describing form { "system_id": ..., "params": ... }.
func (r *RawSystemParams) MarshalJSON() ([]byte, error) {
	type wire struct {
		SystemID string          `json:"system_id"`
		Bytes    []byte          `json:"bytes,omitempty"`
		Params   json.RawMessage `json:"params,omitempty"`
	}
	return json.Marshal(wire{SystemID: r.ID.String(), Bytes: r.Bytes, Params: r.Params})
}

// UnmarshalJSON dispatches on the embedded system_id, per
// taralli-primitives's TryFrom<(&SystemId, Vec<u8>)> pattern.
func (r *RawSystemParams) UnmarshalJSON(data []byte) error {
	var wire struct {
		SystemID string          `json:"system_id"`
		Bytes    []byte          `json:"bytes,omitempty"`
		Params   json.RawMessage `json:"params,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("systems: decode params: %w", err)
	}
	id, err := ParseSystemId(wire.SystemID)
	if err != nil {
		return err
	}
	r.ID = id
	r.Bytes = wire.Bytes
	r.Params = wire.Params
	return nil
}

var _ System = (*RawSystemParams)(nil)
