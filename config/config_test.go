package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	params, err := cfg.VaultParams()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_000_000_000_000_000), params.MaxDailyAccPnlDelta)
	require.Equal(t, big.NewInt(250_000_000_000_000_000), params.MaxAccOpenPnlDelta)
	require.Equal(t, [2]uint64{110, 120}, params.WithdrawLockThresholdsP)
	require.Equal(t, int64(72*3600), params.EpochDuration)

	supply, err := cfg.VaultMaxSupply()
	require.NoError(t, err)
	expected, ok := new(big.Int).SetString("100000000000000000000000000", 10)
	require.True(t, ok)
	require.Equal(t, expected, supply)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "perpd.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perpd.toml")
	body := `
ListenAddress = "0.0.0.0:9000"
DataDir = "/var/lib/perpd"
NetworkName = "perp-test"
BlockIntervalSeconds = 1
PausedModules = ["trade"]
PoolAddress = "0x0102030405060708090a0b0c0d0e0f1011121314"

[Log]
Level = "debug"
Format = "text"

[Vault]
MaxDailyAccPnlDelta = "50000000000000000"
MaxAccOpenPnlDelta = "250000000000000000"
MaxSupply = "1000000000000000000"
MaxSupplyIncreaseDailyP = 1
WithdrawLockThresholdsP = [110, 130]
MaxDiscountP = 10
MaxDiscountThresholdP = 150
MaxLockDurationSeconds = 86400
EpochDurationSeconds = 3600
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
	require.Equal(t, "perp-test", cfg.NetworkName)
	require.Equal(t, []string{"trade"}, cfg.PausedModules)
	require.Equal(t, "debug", cfg.Log.Level)

	params, err := cfg.VaultParams()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50_000_000_000_000_000), params.MaxDailyAccPnlDelta)
	require.Equal(t, [2]uint64{110, 130}, params.WithdrawLockThresholdsP)
	require.Equal(t, int64(86400), params.MaxLockDuration)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perpd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`ListenAddress = ""`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = " " }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero block interval", func(c *Config) { c.BlockIntervalSeconds = 0 }},
		{"malformed pool address", func(c *Config) { c.PoolAddress = "0xzz" }},
		{"short pool address", func(c *Config) { c.PoolAddress = "0x0102" }},
		{"bad daily cap", func(c *Config) { c.Vault.MaxDailyAccPnlDelta = "not-a-number" }},
		{"missing threshold entry", func(c *Config) { c.Vault.WithdrawLockThresholdsP = []uint64{110} }},
		{"unordered thresholds", func(c *Config) { c.Vault.WithdrawLockThresholdsP = []uint64{130, 110} }},
		{"zero epoch duration", func(c *Config) { c.Vault.EpochDurationSeconds = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateFillsNetworkName(t *testing.T) {
	cfg := Default()
	cfg.NetworkName = "  "
	require.NoError(t, cfg.Validate())
	require.Equal(t, "perp-local", cfg.NetworkName)
}

func TestParseAddress(t *testing.T) {
	want := [20]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14}

	got, err := ParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = ParseAddress("  0102030405060708090A0B0C0D0E0F1011121314 ")
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ParseAddress("0x0102")
	require.Error(t, err)

	_, err = ParseAddress("0xnothex")
	require.Error(t, err)
}

func TestVaultMaxSupplyRejectsGarbage(t *testing.T) {
	cfg := Default()
	cfg.Vault.MaxSupply = "12.5"
	_, err := cfg.VaultMaxSupply()
	require.Error(t, err)
}
