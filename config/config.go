package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ContractDefaults seeds the gift card config installed by the initialize
// operation when the payload does not override it.
type ContractDefaults struct {
	ReferralLimit        uint32   `toml:"ReferralLimit"`
	CommissionPercentage uint32   `toml:"CommissionPercentage"`
	BonusPercentage      uint32   `toml:"BonusPercentage"`
	ValidAmounts         []uint64 `toml:"ValidAmounts"`
}

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	NetworkName    string `toml:"NetworkName"`
	LogFile        string `toml:"LogFile"`
	LogMaxSizeMB   int    `toml:"LogMaxSizeMB"`
	LogMaxBackups  int    `toml:"LogMaxBackups"`

	Contract ContractDefaults `toml:"contract"`
}

func defaultConfig() *Config {
	return &Config{
		RPCAddress:     "127.0.0.1:8645",
		MetricsAddress: "127.0.0.1:9464",
		DataDir:        "./data",
		NetworkName:    "solbox-local",
		LogMaxSizeMB:   100,
		LogMaxBackups:  5,
		Contract: ContractDefaults{
			ReferralLimit:        3,
			CommissionPercentage: 90,
			BonusPercentage:      5,
			ValidAmounts:         []uint64{200_000_000, 1_000_000_000, 3_000_000_000},
		},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := defaultConfig()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("config file %s contains unknown field %s", path, undecoded.String())
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "solbox-local"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
