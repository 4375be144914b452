package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"RPC_URL", "SIGNING_KEY", "API_HOST", "API_PORT", "DATABASE_URL"} {
		os.Unsetenv(k)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:8080" {
		t.Errorf("ListenAddr default = %q, want 0.0.0.0:8080", cfg.ListenAddr)
	}
	if cfg.ChainID != 11155111 {
		t.Errorf("ChainID default = %d, want 11155111", cfg.ChainID)
	}
}

func TestValidateRequiresRPCAndSigningKey(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty config")
	}
	cfg.RPCURL = "http://localhost:8545"
	cfg.SigningKey = "0xabc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateBrokerRequiresDatabaseURL(t *testing.T) {
	cfg := &Config{ListenAddr: "0.0.0.0:8080"}
	if err := cfg.ValidateBroker(); err == nil {
		t.Fatal("expected validation error for missing DATABASE_URL")
	}
	cfg.DatabaseURL = "postgres://localhost/taralli"
	if err := cfg.ValidateBroker(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
