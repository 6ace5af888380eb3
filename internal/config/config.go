package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Database DatabaseConfig   `yaml:"database"`
	NATS     NATSConfig       `yaml:"nats"`
	Bridge   BridgeConfig     `yaml:"bridge"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	CORS     CORSConfig       `yaml:"cors"`
	Admin    AdminConfig      `yaml:"admin"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
}

// BridgeConfig bridge protocol parameters.
// Fee and amount fields are decimal token-unit strings ("0.014"), converted to
// smallest units with Decimals at load time.
type BridgeConfig struct {
	FeeRate   string `yaml:"feeRate"`   // proportional fee, e.g. "0.001"
	MinFee    string `yaml:"minFee"`    // fee floor in token units
	MaxFee    string `yaml:"maxFee"`    // fee cap in token units
	MinAmount string `yaml:"minAmount"` // minimum bridgeable amount
	MaxAmount string `yaml:"maxAmount"` // maximum bridgeable amount
	Decimals  int    `yaml:"decimals"`  // token decimals, default 18

	ConfirmTimeout  int `yaml:"confirmTimeout"`  // seconds to wait for a receipt before re-arming
	ConfirmInterval int `yaml:"confirmInterval"` // initial poll interval in seconds
	ResumeInterval  int `yaml:"resumeInterval"`  // seconds between coordinator resume sweeps
}

// NetworkConfig per-chain configuration
type NetworkConfig struct {
	ChainID        int      `yaml:"chainId"`
	Name           string   `yaml:"name"`
	RPCEndpoints   []string `yaml:"rpcEndpoints"`
	BridgeContract string   `yaml:"bridgeContract"`
	FaucetContract string   `yaml:"faucetContract"`

	// Relayer custody key for release submission on this chain. Never committed
	// to config files: RelayerKeyEnv names the environment variable holding the
	// hex private key. PrivateKey is only populated from the environment.
	RelayerKeyEnv  string `yaml:"relayerKeyEnv"`
	PrivateKey     string `yaml:"-"`
	RelayerAddress string `yaml:"relayerAddress"`

	// Optional depositor key for dev/faucet escrow submission.
	DepositorKeyEnv string `yaml:"depositorKeyEnv"`
	DepositorKey    string `yaml:"-"`

	GasPrice string `yaml:"gasPrice"` // wei, empty = suggest from node
	GasLimit uint64 `yaml:"gasLimit"`
	Enabled  bool   `yaml:"enabled"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"` // IP addresses or CIDR ranges
}

var AppConfig *Config

// LoadConfig loads the configuration file, then applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	overrideFromEnv(&config)

	fmt.Printf("✅ [%s] Loaded configuration from %s (%d network(s))\n",
		time.Now().Format("2006-01-02 15:04:05"), configPath, len(config.Networks))

	AppConfig = &config
	return nil
}

func applyDefaults(config *Config) {
	if config.Bridge.FeeRate == "" {
		config.Bridge.FeeRate = "0.001"
	}
	if config.Bridge.MinFee == "" {
		config.Bridge.MinFee = "0.014"
	}
	if config.Bridge.MaxFee == "" {
		config.Bridge.MaxFee = "0.22"
	}
	if config.Bridge.MinAmount == "" {
		config.Bridge.MinAmount = "0.05"
	}
	if config.Bridge.MaxAmount == "" {
		config.Bridge.MaxAmount = "100000"
	}
	if config.Bridge.Decimals == 0 {
		config.Bridge.Decimals = 18
	}
	if config.Bridge.ConfirmTimeout == 0 {
		config.Bridge.ConfirmTimeout = 180
	}
	if config.Bridge.ConfirmInterval == 0 {
		config.Bridge.ConfirmInterval = 3
	}
	if config.Bridge.ResumeInterval == 0 {
		config.Bridge.ResumeInterval = 30
	}
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	for networkName, networkConfig := range config.Networks {
		// Relayer custody key: RELAYER_PRIVATE_KEY, a network-specific variable
		// (e.g. MUMBAI_RELAYER_PRIVATE_KEY), or the variable named in config.
		keyEnv := networkConfig.RelayerKeyEnv
		if keyEnv == "" {
			keyEnv = fmt.Sprintf("%s_RELAYER_PRIVATE_KEY", strings.ToUpper(networkName))
		}
		if key := os.Getenv(keyEnv); key != "" {
			networkConfig.PrivateKey = strings.TrimPrefix(key, "0x")
		} else if key := os.Getenv("RELAYER_PRIVATE_KEY"); key != "" {
			networkConfig.PrivateKey = strings.TrimPrefix(key, "0x")
		}

		depositorEnv := networkConfig.DepositorKeyEnv
		if depositorEnv == "" {
			depositorEnv = fmt.Sprintf("%s_DEPOSITOR_PRIVATE_KEY", strings.ToUpper(networkName))
		}
		if key := os.Getenv(depositorEnv); key != "" {
			networkConfig.DepositorKey = strings.TrimPrefix(key, "0x")
		}

		envRPC := fmt.Sprintf("%s_RPC_ENDPOINTS", strings.ToUpper(networkName))
		if rpcEndpoints := os.Getenv(envRPC); rpcEndpoints != "" {
			networkConfig.RPCEndpoints = strings.Split(rpcEndpoints, ",")
		}

		envBridge := fmt.Sprintf("%s_BRIDGE_CONTRACT", strings.ToUpper(networkName))
		if bridge := os.Getenv(envBridge); bridge != "" {
			networkConfig.BridgeContract = bridge
		}

		envGasPrice := fmt.Sprintf("%s_GAS_PRICE", strings.ToUpper(networkName))
		if gasPrice := os.Getenv(envGasPrice); gasPrice != "" {
			networkConfig.GasPrice = gasPrice
		}
		envGasLimit := fmt.Sprintf("%s_GAS_LIMIT", strings.ToUpper(networkName))
		if gasLimit := os.Getenv(envGasLimit); gasLimit != "" {
			if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
				networkConfig.GasLimit = limit
			}
		}

		config.Networks[networkName] = networkConfig
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetNetworkConfig returns the configuration of an enabled network by name
func GetNetworkConfig(networkName string) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	network, exists := AppConfig.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", networkName)
	}

	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", networkName)
	}

	return &network, nil
}

// GetNetworkConfigByChainID returns the configuration of an enabled network by chain ID
func GetNetworkConfigByChainID(chainID int) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	for _, network := range AppConfig.Networks {
		if network.ChainID == chainID && network.Enabled {
			return &network, nil
		}
	}

	return nil, fmt.Errorf("network with chainID %d not found or disabled", chainID)
}
