// Package systems defines the closed SystemId enumeration and the
// System/SystemParams abstractions over the five proving backends the
// marketplace brokers work for. Mirrors the System trait and SystemId enum
// in original_source/crates/taralli-primitives/src/systems/mod.rs.
package systems

import (
	"encoding/json"
	"fmt"
)

// SystemId is a closed enumeration of supported proving systems. Both the
// canonical lowercase-kebab string form and the single-bit subscription
// mask MUST be preserved exactly — they are part of the wire protocol.
type SystemId uint8

const (
	AlignedLayer SystemId = iota
	Arkworks
	Gnark
	Risc0
	Sp1
)

var idToName = map[SystemId]string{
	AlignedLayer: "aligned-layer",
	Arkworks:     "arkworks",
	Gnark:        "gnark",
	Risc0:        "risc0",
	Sp1:          "sp1",
}

var nameToId = func() map[string]SystemId {
	m := make(map[string]SystemId, len(idToName))
	for id, name := range idToName {
		m[name] = id
	}
	return m
}()

// String returns the canonical lowercase-kebab name, e.g. "aligned-layer".
func (s SystemId) String() string {
	if name, ok := idToName[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// MarshalJSON encodes a SystemId as its canonical name, e.g. `"gnark"`, so
// config files and API payloads stay human-readable.
func (s SystemId) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a canonical name back into a SystemId.
func (s *SystemId) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	id, err := ParseSystemId(name)
	if err != nil {
		return err
	}
	*s = id
	return nil
}

// ParseSystemId parses a canonical name back into a SystemId.
func ParseSystemId(name string) (SystemId, error) {
	if id, ok := nameToId[name]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("systems: unknown system id %q", name)
}

// Bit returns the single-bit power-of-two mask used for subscription
// filtering: the broker's broadcast bus and a subscriber's mask are both
// expressed in this bit space.
func (s SystemId) Bit() uint32 {
	return 1 << uint32(s)
}

// All enumerates every known SystemId in a stable order.
func All() []SystemId {
	return []SystemId{AlignedLayer, Arkworks, Gnark, Risc0, Sp1}
}

// MaskFromNames parses a comma-separated list of canonical names (as used by
// GET /subscribe?system_ids=a,b,c) into a combined subscription bitmask.
func MaskFromNames(names []string) (uint32, error) {
	var mask uint32
	for _, n := range names {
		id, err := ParseSystemId(n)
		if err != nil {
			return 0, err
		}
		mask |= id.Bit()
	}
	return mask, nil
}

// System is the per-proving-system behavior every SystemParams variant
// implements: a self-identifying id, an opaque-bytes-or-JSON input
// accessor, and an input sanity check (non-empty ELF/r1cs/wasm where
// applicable). Workers and validators both depend only on this interface.
type System interface {
	SystemID() SystemId
	ValidateInputs() error
	Inputs() []byte
}
