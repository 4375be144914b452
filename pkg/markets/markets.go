// Package markets is the market-address registry: which UniversalBombetta /
// UniversalPorchetta / Permit2 contracts a given network deploys. Grounded
// on original_source/crates/taralli-primitives/src/markets.rs, generalized
// from Rust compile-time constants into a runtime registry file so new
// networks don't require a rebuild.
package markets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zkintents/taralli/pkg/intent"
)

// NetworkMarkets is one network's market and Permit2 deployment addresses.
type NetworkMarkets struct {
	UniversalBombetta  string `yaml:"universal_bombetta"`
	UniversalPorchetta string `yaml:"universal_porchetta"`
	Permit2            string `yaml:"permit2,omitempty"`
}

// Registry maps network name (e.g. "sepolia") to its market addresses.
type Registry map[string]NetworkMarkets

// Load reads and decodes a markets.yaml file.
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("markets: read %s: %w", path, err)
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("markets: parse %s: %w", path, err)
	}
	return reg, nil
}

// Default seeds the registry with the Sepolia addresses original_source
// hardcodes, so a deployment with no markets.yaml still works against the
// reference testnet deployment.
func Default() Registry {
	return Registry{
		"sepolia": {
			UniversalBombetta:  "0x6209431B6C8F38471dc65564Be2Fd08298705BBD",
			UniversalPorchetta: "0x67445680c74Fb82C46421374554e402e72E9e5d1",
			Permit2:            intent.Permit2Address.Hex(),
		},
	}
}
