package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. DEXSCOPE_RPC.
const EnvPrefix = "DEXSCOPE"

// DefaultOut is the JSONL sink used when neither out nor pg-dsn is set.
const DefaultOut = "./data/events.jsonl"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL   string
	ChainID  uint64
	Exchange string
	Token0   string
	Token1   string

	FromBlock    uint64
	ToBlock      uint64
	ChunkSize    uint64
	ChunkPause   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	Out               string
	In                string
	Checkpoint        string
	CheckpointEnabled bool
	PGDSN             string

	BackfillEnabled bool
	BackfillURL     string
	BackfillAPIKey  string

	Account    string
	PrivateKey string

	PollInterval time.Duration
	MetricsAddr  string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chunk-size", uint64(500))
	v.SetDefault("chunk-pause", 250*time.Millisecond)
	v.SetDefault("max-retries", 4)
	v.SetDefault("retry-backoff", time.Second)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("backfill-enabled", false)
	v.SetDefault("backfill-url", "https://api.etherscan.io/api")
	v.SetDefault("poll-interval", 4*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		ChainID:           v.GetUint64("chain-id"),
		Exchange:          v.GetString("exchange"),
		Token0:            v.GetString("token0"),
		Token1:            v.GetString("token1"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		ChunkSize:         v.GetUint64("chunk-size"),
		ChunkPause:        v.GetDuration("chunk-pause"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Out:               v.GetString("out"),
		In:                v.GetString("in"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		PGDSN:             v.GetString("pg-dsn"),
		BackfillEnabled:   v.GetBool("backfill-enabled"),
		BackfillURL:       v.GetString("backfill-url"),
		BackfillAPIKey:    v.GetString("backfill-api-key"),
		Account:           v.GetString("account"),
		PrivateKey:        v.GetString("private-key"),
		PollInterval:      v.GetDuration("poll-interval"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// RequireRPC checks the settings every chain-facing command needs.
func (c Config) RequireRPC() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.Exchange == "" {
		return fmt.Errorf("exchange address is required")
	}
	return nil
}

// SyncOut returns the JSONL path sync writes to. An explicit out is always
// used; otherwise Postgres alone is the sink when pg-dsn is set.
func (c Config) SyncOut() string {
	if c.Out != "" {
		return c.Out
	}
	if c.PGDSN != "" {
		return ""
	}
	return DefaultOut
}

func (c Config) ExchangeAddress() (common.Address, error) {
	return ParseAddress("exchange", c.Exchange)
}

// PairAddresses returns the configured token0 and token1 addresses.
func (c Config) PairAddresses() (common.Address, common.Address, error) {
	token0, err := ParseAddress("token0", c.Token0)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := ParseAddress("token1", c.Token1)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if token0 == token1 {
		return common.Address{}, common.Address{}, fmt.Errorf("token0 and token1 must differ")
	}
	return token0, token1, nil
}

func (c Config) AccountAddress() (common.Address, error) {
	return ParseAddress("account", c.Account)
}

// ParseAddress validates a hex address setting.
func ParseAddress(name, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, fmt.Errorf("%s address is required", name)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, value)
	}
	return common.HexToAddress(value), nil
}
