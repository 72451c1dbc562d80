package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, ":9090", cfg.MetricsAddress)
	require.Equal(t, uint8(1), cfg.Market.QuorumDefault)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `DataDir = "/var/escrow"
MetricsAddress = ":9191"
Env = "prod"

[Market]
FeeBps = 250
InsuranceBps = 100
RetentionBps = 500
WarrantyDays = 90
QuorumDefault = 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/escrow", cfg.DataDir)
	require.Equal(t, uint32(250), cfg.Market.FeeBps)
	require.Equal(t, uint32(500), cfg.Market.RetentionBps)
	require.Equal(t, uint8(2), cfg.Market.QuorumDefault)
}

func TestLoadRejectsBadSplits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `DataDir = "/var/escrow"

[Market]
FeeBps = 9000
InsuranceBps = 2000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
