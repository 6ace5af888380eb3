package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
server:
  host: 127.0.0.1
  port: 9090

database:
  driver: postgres
  dsn: "host=localhost dbname=bridge_test"

bridge:
  feeRate: "0.002"

networks:
  testnet:
    chainId: 80001
    name: "Testnet"
    rpcEndpoints:
      - "http://localhost:8545"
    bridgeContract: "0x1111111111111111111111111111111111111111"
    enabled: true
  disabled_net:
    chainId: 99
    name: "Disabled"
    enabled: false
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	if err := LoadConfig(writeTestConfig(t)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	// Explicit value wins, missing values fall back to protocol defaults.
	if AppConfig.Bridge.FeeRate != "0.002" {
		t.Errorf("feeRate = %s, want 0.002", AppConfig.Bridge.FeeRate)
	}
	if AppConfig.Bridge.MinFee != "0.014" {
		t.Errorf("minFee default = %s, want 0.014", AppConfig.Bridge.MinFee)
	}
	if AppConfig.Bridge.MaxFee != "0.22" {
		t.Errorf("maxFee default = %s, want 0.22", AppConfig.Bridge.MaxFee)
	}
	if AppConfig.Bridge.MinAmount != "0.05" {
		t.Errorf("minAmount default = %s, want 0.05", AppConfig.Bridge.MinAmount)
	}
	if AppConfig.Bridge.Decimals != 18 {
		t.Errorf("decimals default = %d, want 18", AppConfig.Bridge.Decimals)
	}
	if AppConfig.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", AppConfig.Server.Port)
	}
}

func TestRelayerKeyComesFromEnvironmentOnly(t *testing.T) {
	t.Setenv("TESTNET_RELAYER_PRIVATE_KEY", "0xabc123")

	if err := LoadConfig(writeTestConfig(t)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	network := AppConfig.Networks["testnet"]
	if network.PrivateKey != "abc123" {
		t.Errorf("PrivateKey = %q, want abc123 (0x prefix stripped)", network.PrivateKey)
	}
}

func TestRelayerKeyFallbackVariable(t *testing.T) {
	t.Setenv("RELAYER_PRIVATE_KEY", "deadbeef")

	if err := LoadConfig(writeTestConfig(t)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	network := AppConfig.Networks["testnet"]
	if network.PrivateKey != "deadbeef" {
		t.Errorf("PrivateKey = %q, want fallback deadbeef", network.PrivateKey)
	}
}

func TestGetNetworkConfigByChainID(t *testing.T) {
	if err := LoadConfig(writeTestConfig(t)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	network, err := GetNetworkConfigByChainID(80001)
	if err != nil {
		t.Fatalf("GetNetworkConfigByChainID: %v", err)
	}
	if network.Name != "Testnet" {
		t.Errorf("name = %s, want Testnet", network.Name)
	}

	if _, err := GetNetworkConfigByChainID(99); err == nil {
		t.Error("disabled network must not resolve")
	}
	if _, err := GetNetworkConfigByChainID(424242); err == nil {
		t.Error("unknown chainID must not resolve")
	}
}

func TestGetNetworkConfigByName(t *testing.T) {
	if err := LoadConfig(writeTestConfig(t)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if _, err := GetNetworkConfig("testnet"); err != nil {
		t.Errorf("GetNetworkConfig(testnet): %v", err)
	}
	if _, err := GetNetworkConfig("disabled_net"); err == nil {
		t.Error("disabled network must not resolve")
	}
	if _, err := GetNetworkConfig("missing"); err == nil {
		t.Error("missing network must not resolve")
	}
}
