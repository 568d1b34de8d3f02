package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gimbal/internal/config"
	"github.com/banshee-data/gimbal/internal/gimbal"
	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/gimbal/sim"
	"github.com/banshee-data/gimbal/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configFile)
	assert.False(t, *devMode)
	assert.False(t, *noRecord)
	assert.Equal(t, 0.0, *simDrop)
}

func TestLoadConfigBuiltinDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.TransportUDP, cfg.GetTransport())
	assert.Equal(t, "192.168.0.108:9003", cfg.CameraAddress())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gimbal.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"checksum":"byte","timeout":"250ms","retry_count":1}`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	scfg := gimbal.ConfigFrom(cfg)
	assert.Equal(t, frame.ChecksumByte, scfg.Codec.Checksum)
	assert.Equal(t, 250*time.Millisecond, scfg.Dispatch.Timeout)
	assert.Equal(t, 1, scfg.Dispatch.MaxRetries)
	assert.Equal(t, address.Network, scfg.Source)
}

func TestApplyFlags(t *testing.T) {
	cfg := &config.GimbalConfig{}
	old := *dbPathFlag
	*dbPathFlag = "other.db"
	defer func() { *dbPathFlag = old }()

	applyFlags(cfg)
	assert.Equal(t, "other.db", cfg.GetDBPath())
	assert.Equal(t, "localhost:8080", cfg.GetAdminListen())
}

func TestOpenLinkDevModeAnswersVersion(t *testing.T) {
	cfg := &config.GimbalConfig{}
	link, g, err := openLink(cfg, true)
	require.NoError(t, err)
	require.NotNil(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	s := gimbal.NewSession(link, gimbal.ConfigFrom(cfg))
	defer s.Close()
	go s.Run(ctx)

	v, err := gimbal.NewClient(s).Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, sim.Version, v)
}
