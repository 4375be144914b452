package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/validator"
)

// MarketAddresses is the pair of market-contract addresses the broker
// accepts intents for: universal_bombetta (request market) and
// universal_porchetta (offer market). Grounded on
// original_source/crates/taralli-primitives/src/markets.rs.
type MarketAddresses struct {
	UniversalBombetta  common.Address `json:"universal_bombetta"`
	UniversalPorchetta common.Address `json:"universal_porchetta"`
}

// BrokerFileConfig is the decoded shape of the broker's `config.json`, per
// spec.md §6: server_port, log_level, validation_timeout_seconds, markets,
// base_validation_config, request_validation_config, offer_validation_config.
type BrokerFileConfig struct {
	ServerPort               int                     `json:"server_port"`
	LogLevel                 string                  `json:"log_level"`
	ValidationTimeoutSeconds int                     `json:"validation_timeout_seconds"`
	Markets                  MarketAddresses         `json:"markets"`
	BaseValidationConfig     validator.BaseValidationConfig `json:"base_validation_config"`
	RequestValidationConfig  validator.AmountConfig  `json:"request_validation_config"`
	OfferValidationConfig    validator.AmountConfig  `json:"offer_validation_config"`
}

// DefaultBrokerFileConfig returns the spec-mandated defaults: port 8080,
// info logging, a 5 second validation timeout.
func DefaultBrokerFileConfig() BrokerFileConfig {
	return BrokerFileConfig{
		ServerPort:               8080,
		LogLevel:                 "info",
		ValidationTimeoutSeconds: 5,
		BaseValidationConfig:     validator.DefaultBaseValidationConfig(),
	}
}

// LoadBrokerFileConfig reads and decodes a broker config.json from path,
// filling any unset scalar fields from DefaultBrokerFileConfig.
func LoadBrokerFileConfig(path string) (*BrokerFileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultBrokerFileConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
