package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "software", cfg.Compute.Backend)
	require.Equal(t, 1920, cfg.Scheduler.BlackFrameWidth)
	require.Equal(t, 1080, cfg.Scheduler.BlackFrameHeight)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Plugins.GStreamer.Enabled)
	require.False(t, cfg.Plugins.WebRTC.Enabled)
	require.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.Plugins.WebRTC.STUNServers)
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("PHANERON_LOG_LEVEL", "debug")
	t.Setenv("PHANERON_GST_ENABLED", "true")
	t.Setenv("PHANERON_WEBRTC_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Plugins.GStreamer.Enabled)
	require.True(t, cfg.Plugins.WebRTC.Enabled)

	// envconfig.Process reads straight from the process environment, so
	// clearing here (rather than relying only on t.Setenv's own cleanup)
	// guards against ordering with any other test in this package.
	t.Cleanup(func() {
		os.Unsetenv("PHANERON_LOG_LEVEL")
		os.Unsetenv("PHANERON_GST_ENABLED")
		os.Unsetenv("PHANERON_WEBRTC_ENABLED")
	})
}
