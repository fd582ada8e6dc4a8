package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"perpcore/venue/vault"
)

// Config is the daemon's on-disk configuration.
type Config struct {
	ListenAddress        string   `toml:"ListenAddress"`
	DataDir              string   `toml:"DataDir"`
	NetworkName          string   `toml:"NetworkName"`
	BlockIntervalSeconds uint64   `toml:"BlockIntervalSeconds"`
	PausedModules        []string `toml:"PausedModules"`
	PoolAddress          string   `toml:"PoolAddress"`

	Log   LogConfig   `toml:"Log"`
	Vault VaultConfig `toml:"Vault"`
}

// LogConfig controls structured logging and file rotation.
type LogConfig struct {
	Level      string `toml:"Level"`
	Format     string `toml:"Format"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// VaultConfig mirrors vault.Params with big integers carried as decimal
// strings, since TOML integers cannot hold 18-decimal fixed-point values.
type VaultConfig struct {
	MaxDailyAccPnlDelta     string   `toml:"MaxDailyAccPnlDelta"`
	MaxAccOpenPnlDelta      string   `toml:"MaxAccOpenPnlDelta"`
	MaxSupply               string   `toml:"MaxSupply"`
	MaxSupplyIncreaseDailyP uint64   `toml:"MaxSupplyIncreaseDailyP"`
	WithdrawLockThresholdsP []uint64 `toml:"WithdrawLockThresholdsP"`
	MaxDiscountP            uint64   `toml:"MaxDiscountP"`
	MaxDiscountThresholdP   uint64   `toml:"MaxDiscountThresholdP"`
	MaxLockDurationSeconds  int64    `toml:"MaxLockDurationSeconds"`
	EpochDurationSeconds    int64    `toml:"EpochDurationSeconds"`
}

// Default returns the configuration a fresh deployment starts from.
func Default() *Config {
	return &Config{
		ListenAddress:        "127.0.0.1:8547",
		DataDir:              "./perpd-data",
		NetworkName:          "perp-local",
		BlockIntervalSeconds: 3,
		PausedModules:        []string{},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Vault: VaultConfig{
			MaxDailyAccPnlDelta:     "100000000000000000",  // 0.1 per share
			MaxAccOpenPnlDelta:      "250000000000000000",  // 0.25 per share
			MaxSupply:               "100000000000000000000000000",
			MaxSupplyIncreaseDailyP: 2,
			WithdrawLockThresholdsP: []uint64{110, 120},
			MaxDiscountP:            5,
			MaxDiscountThresholdP:   150,
			MaxLockDurationSeconds:  365 * 24 * 3600,
			EpochDurationSeconds:    72 * 3600,
		},
	}
}

// Load reads the configuration at path, writing the defaults there first
// when no file exists yet.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
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

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.BlockIntervalSeconds == 0 {
		return fmt.Errorf("config: BlockIntervalSeconds must be positive")
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "perp-local"
	}
	if c.PoolAddress != "" {
		if _, err := ParseAddress(c.PoolAddress); err != nil {
			return fmt.Errorf("config: PoolAddress: %w", err)
		}
	}
	params, err := c.VaultParams()
	if err != nil {
		return err
	}
	return params.Validate()
}

// VaultParams converts the string-typed vault section into engine
// parameters.
func (c *Config) VaultParams() (*vault.Params, error) {
	daily, err := parseBig("Vault.MaxDailyAccPnlDelta", c.Vault.MaxDailyAccPnlDelta)
	if err != nil {
		return nil, err
	}
	epoch, err := parseBig("Vault.MaxAccOpenPnlDelta", c.Vault.MaxAccOpenPnlDelta)
	if err != nil {
		return nil, err
	}
	if len(c.Vault.WithdrawLockThresholdsP) != 2 {
		return nil, fmt.Errorf("config: Vault.WithdrawLockThresholdsP needs exactly two entries")
	}
	return &vault.Params{
		MaxDailyAccPnlDelta:     daily,
		MaxAccOpenPnlDelta:      epoch,
		MaxSupplyIncreaseDailyP: c.Vault.MaxSupplyIncreaseDailyP,
		WithdrawLockThresholdsP: [2]uint64{c.Vault.WithdrawLockThresholdsP[0], c.Vault.WithdrawLockThresholdsP[1]},
		MaxDiscountP:            c.Vault.MaxDiscountP,
		MaxDiscountThresholdP:   c.Vault.MaxDiscountThresholdP,
		MaxLockDuration:         c.Vault.MaxLockDurationSeconds,
		EpochDuration:           c.Vault.EpochDurationSeconds,
	}, nil
}

// VaultMaxSupply parses the configured share-supply cap.
func (c *Config) VaultMaxSupply() (*big.Int, error) {
	return parseBig("Vault.MaxSupply", c.Vault.MaxSupply)
}

// ParseAddress decodes a 20-byte hex address, with or without 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, err
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes, got %d", len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseBig(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("config: %s: invalid decimal integer %q", field, raw)
	}
	return v, nil
}
