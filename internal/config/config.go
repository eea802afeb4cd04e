// Package config loads the application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Cluster  string         `yaml:"cluster"`
	RPCURL   string         `yaml:"rpc_url"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Vault    string         `yaml:"vault"`
	Poll     PollConfig     `yaml:"poll"`
	Confirm  ConfirmConfig  `yaml:"confirm"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	LogLevel string         `yaml:"log_level"`
	Identity IdentityConfig `yaml:"identity"`
}

// WalletConfig locates the wallet adapter endpoint.
type WalletConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// IdentityConfig is the app identity presented during authorization.
type IdentityConfig struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
	Icon string `yaml:"icon"`
}

// PollConfig tunes the balance poller.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ConfirmConfig tunes transaction confirmation polling.
type ConfirmConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig selects the persistent store. An empty address keeps the
// in-memory store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the devnet configuration the app ships with.
func Default() *Config {
	return &Config{
		Cluster: "devnet",
		RPCURL:  "https://api.devnet.solana.com",
		Vault:   "WTCyq1nqnpmMaha3MxpQEstauF3t4jeezX6PvvQivd8",
		Wallet:  WalletConfig{Endpoint: "ws://localhost:8765"},
		Poll:    PollConfig{Interval: 10 * time.Second},
		Confirm: ConfirmConfig{
			Interval: 2 * time.Second,
			Timeout:  90 * time.Second,
		},
		HTTP:     HTTPConfig{ListenAddr: ":8080"},
		LogLevel: "info",
		Identity: IdentityConfig{
			Name: "SolanaSnap",
			URI:  "https://solanasnap.app",
			Icon: "favicon.ico",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; the defaults and
// environment alone are a valid configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	if c.Vault == "" {
		return fmt.Errorf("vault is required")
	}
	if c.Cluster == "" {
		return fmt.Errorf("cluster is required")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Cluster, "WALLETCORE_CLUSTER")
	setString(&cfg.RPCURL, "WALLETCORE_RPC_URL")
	setString(&cfg.Wallet.Endpoint, "WALLETCORE_WALLET_ENDPOINT")
	setString(&cfg.Vault, "WALLETCORE_VAULT")
	setString(&cfg.Redis.Addr, "WALLETCORE_REDIS_ADDR")
	setString(&cfg.Redis.Password, "WALLETCORE_REDIS_PASSWORD")
	setString(&cfg.Redis.Prefix, "WALLETCORE_REDIS_PREFIX")
	setString(&cfg.HTTP.ListenAddr, "WALLETCORE_LISTEN_ADDR")
	setString(&cfg.LogLevel, "WALLETCORE_LOG_LEVEL")
	setInt(&cfg.Redis.DB, "WALLETCORE_REDIS_DB")
	setDuration(&cfg.Poll.Interval, "WALLETCORE_POLL_INTERVAL")
	setDuration(&cfg.Confirm.Interval, "WALLETCORE_CONFIRM_INTERVAL")
	setDuration(&cfg.Confirm.Timeout, "WALLETCORE_CONFIRM_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
