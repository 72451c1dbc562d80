package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// MarketGenesis seeds the market configuration on first start. The fields
// mirror the on-state market config; bps values are out of 10000.
type MarketGenesis struct {
	Authority         string `toml:"Authority"`
	Treasury          string `toml:"Treasury"`
	InsuranceTreasury string `toml:"InsuranceTreasury"`
	Arbiter           string `toml:"Arbiter"`
	FeeBps            uint32 `toml:"FeeBps"`
	InsuranceBps      uint32 `toml:"InsuranceBps"`
	RetentionBps      uint32 `toml:"RetentionBps"`
	WarrantyDays      uint32 `toml:"WarrantyDays"`
	QuorumDefault     uint8  `toml:"QuorumDefault"`
}

type Config struct {
	DataDir        string        `toml:"DataDir"`
	MetricsAddress string        `toml:"MetricsAddress"`
	Env            string        `toml:"Env"`
	Market         MarketGenesis `toml:"Market"`
}

// Load reads the configuration at path, writing a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the settlement engine cannot honour.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.Market.FeeBps > 10000 || c.Market.InsuranceBps > 10000 ||
		c.Market.FeeBps+c.Market.InsuranceBps > 10000 {
		return fmt.Errorf("config: Market fee and insurance bps exceed 10000")
	}
	if c.Market.RetentionBps > 10000 {
		return fmt.Errorf("config: Market retention bps exceed 10000")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if cfg.Market.QuorumDefault == 0 {
		cfg.Market.QuorumDefault = 1
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
