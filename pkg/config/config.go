// Package config loads the runtime's process configuration, mirroring the
// teacher's envconfig-based pkg/config/config.go: a single struct of nested
// sections, tagged with envconfig names and defaults, loaded in one call.
package config

import "github.com/kelseyhightower/envconfig"

// Config is the top-level process configuration for cmd/phaneron.
type Config struct {
	Compute   Compute
	Scheduler SchedulerConfig
	PubSub    PubSub
	Log       Log
	Plugins   Plugins
}

// Compute selects and sizes the compute backend (component A).
type Compute struct {
	// Backend names which compute.Device to construct. Only "software" is
	// implemented; see pkg/compute's package comment for why no real GPU
	// backend ships with this module.
	Backend string `envconfig:"PHANERON_COMPUTE_BACKEND" default:"software"`
}

// SchedulerConfig tunes the per-node Runner tick loop (component F).
type SchedulerConfig struct {
	// BlackFrameWidth/Height are loaded from the environment, but no
	// runtime package reads them: pkg/scheduler sizes its black-frame
	// substitute from the input frames it receives, starting at 256x1.
	BlackFrameWidth  int `envconfig:"PHANERON_BLACK_FRAME_WIDTH" default:"1920"`
	BlackFrameHeight int `envconfig:"PHANERON_BLACK_FRAME_HEIGHT" default:"1080"`
}

// PubSub holds settings for the registry's embedded NATS snapshot bus
// (component G), mirroring the teacher's pubsub.New(cfg) shape.
// EmbeddedServerPort is loaded but not passed to the registry, whose bus
// always binds a random port.
type PubSub struct {
	EmbeddedServerPort int `envconfig:"PHANERON_NATS_PORT" default:"-1"`
}

// Log configures zerolog's global level, matching the teacher's
// system.SetupLogging pattern.
type Log struct {
	Level string `envconfig:"PHANERON_LOG_LEVEL" default:"info"`
}

// Plugins selects which optional plugin hosts cmd/phaneron serve registers
// alongside the always-on demo host.
type Plugins struct {
	GStreamer GStreamerConfig
	WebRTC    WebRTCConfig
}

// GStreamerConfig configures the GStreamer-backed producer plugin host.
type GStreamerConfig struct {
	Enabled bool `envconfig:"PHANERON_GST_ENABLED" default:"false"`
}

// WebRTCConfig configures the WebRTC-backed consumer plugin host.
type WebRTCConfig struct {
	Enabled bool `envconfig:"PHANERON_WEBRTC_ENABLED" default:"false"`
	// STUNServers lists ICE STUN server URLs, mirroring the
	// webrtc.Configuration.ICEServers shape pion/webrtc consumes directly.
	STUNServers []string `envconfig:"PHANERON_WEBRTC_STUN_SERVERS" default:"stun:stun.l.google.com:19302"`
}

// Load reads Config from the process environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
