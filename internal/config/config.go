package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mgpai22/txsim"
)

const (
	IndexerKoios      = "koios"
	IndexerOgmios     = "ogmios"
	IndexerBlockfrost = "blockfrost"

	SimulatorAiken = "aiken"
	SimulatorWasm  = "wasm"

	DefaultTimeout = "2m"
)

type ctxKey string

const configContextKey ctxKey = "txsim.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Network             string `yaml:"network"`
	PlutusVersion       uint8  `yaml:"plutusVersion"       split_words:"true"`
	Debug               bool   `yaml:"debug"`
	Indexer             string `yaml:"indexer"`
	KoiosEndpoint       string `yaml:"koiosEndpoint"       split_words:"true"`
	OgmiosEndpoint      string `yaml:"ogmiosEndpoint"      split_words:"true"`
	BlockfrostEndpoint  string `yaml:"blockfrostEndpoint"  split_words:"true"`
	BlockfrostProjectID string `yaml:"blockfrostProjectId" envconfig:"BLOCKFROST_PROJECT_ID"`
	UtxoFile            string `yaml:"utxoFile"            split_words:"true"`
	Simulator           string `yaml:"simulator"`
	AikenPath           string `yaml:"aikenPath"           split_words:"true"`
	WasmFile            string `yaml:"wasmFile"            split_words:"true"`
	CostModelsFile      string `yaml:"costModelsFile"      split_words:"true"`
	MaxTxExSteps        uint64 `yaml:"maxTxExSteps"        envconfig:"MAX_TX_EX_STEPS"`
	MaxTxExMem          uint64 `yaml:"maxTxExMem"          envconfig:"MAX_TX_EX_MEM"`
	Timeout             string `yaml:"timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Network:       "preprod",
		PlutusVersion: uint8(txsim.DefaultPlutusVersion),
		Indexer:       IndexerKoios,
		Simulator:     SimulatorAiken,
		AikenPath:     txsim.DefaultAikenPath,
		MaxTxExSteps:  10000000000,
		MaxTxExMem:    14000000,
		Timeout:       DefaultTimeout,
	}
}

// LoadConfig layers the YAML file at configFile (if any) and then TXSIM_*
// environment variables over the defaults.
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("txsim", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.NetworkID(); err != nil {
		return err
	}
	switch c.Indexer {
	case IndexerKoios, IndexerOgmios:
	case IndexerBlockfrost:
		if c.BlockfrostProjectID == "" && c.UtxoFile == "" {
			return errors.New("blockfrostProjectId is required by the blockfrost indexer")
		}
	case "":
		if c.UtxoFile == "" {
			return errors.New("no indexer configured")
		}
	default:
		return fmt.Errorf("invalid indexer: %q (must be 'koios', 'ogmios' or 'blockfrost')", c.Indexer)
	}
	switch c.Simulator {
	case SimulatorAiken:
	case SimulatorWasm:
		if c.WasmFile == "" {
			return errors.New("wasmFile is required by the wasm simulator")
		}
	default:
		return fmt.Errorf("invalid simulator: %q (must be 'aiken' or 'wasm')", c.Simulator)
	}
	switch txsim.PlutusVersion(c.PlutusVersion) {
	case txsim.PlutusV1, txsim.PlutusV2, txsim.PlutusV3:
	default:
		return fmt.Errorf("invalid plutusVersion: %d", c.PlutusVersion)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// NetworkID maps the network name onto the address network nibble.
func (c *Config) NetworkID() (txsim.NetworkID, error) {
	switch c.Network {
	case "mainnet":
		return txsim.Mainnet, nil
	case "preprod", "preview", "testnet":
		return txsim.Testnet, nil
	default:
		return 0, fmt.Errorf("invalid network: %q", c.Network)
	}
}

func (c *Config) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}
