// Package config loads the server's operating parameters via viper:
// a config file (YAML), overridden by LAMCO_-prefixed environment
// variables, unmarshaled onto a struct with sane defaults (§1c).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds every ambient knob the core components consult at
// startup or session-creation time. None of it is read mid-frame; the
// per-frame control-flow decisions (aux omission, activity ramping,
// backpressure) live entirely inside the components they govern.
type Config struct {
	ListenAddress string `mapstructure:"listen_address"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`

	// Encoder tuning, mirrored onto video.Avc420EncoderConfig /
	// video.Avc444EncoderConfig at session start.
	BitrateKbps             uint32 `mapstructure:"bitrate_kbps"`
	EnableSkipFrame         bool   `mapstructure:"enable_skip_frame"`
	PeriodicIDRIntervalSecs uint32 `mapstructure:"periodic_idr_interval_secs"`
	EnableAuxOmission       bool   `mapstructure:"enable_aux_omission"`
	MaxAuxInterval          uint32 `mapstructure:"max_aux_interval"`

	// Adaptive FPS bounds, mirrored onto adaptive.FPSConfig.
	AdaptiveFPSEnabled bool   `mapstructure:"adaptive_fps_enabled"`
	MinFPS             uint32 `mapstructure:"min_fps"`
	MaxFPS             uint32 `mapstructure:"max_fps"`

	// Latency governor default mode; parsed with adaptive.ParseLatencyMode.
	LatencyMode string `mapstructure:"latency_mode"`

	// Clipboard loop-detector tuning, mirrored onto clipboard.Config.
	ClipboardWindowMs             uint32 `mapstructure:"clipboard_window_ms"`
	ClipboardMaxHistory           int    `mapstructure:"clipboard_max_history"`
	ClipboardEnableContentHashing bool   `mapstructure:"clipboard_enable_content_hashing"`
	ClipboardRateLimitMs          uint32 `mapstructure:"clipboard_rate_limit_ms"`

	// Session strategy preference order, tried left to right by the
	// fabric (the run command constructs strategies in this order before
	// calling session.NewFabric; Validate rejects unknown names).
	SessionStrategyOrder []string `mapstructure:"session_strategy_order"`

	// HeadlessLocal is feature-flag gated per §4.K; it also requires
	// root regardless of this setting.
	HeadlessEnabled bool `mapstructure:"headless_enabled"`

	// Token store backend preference; "auto" defers to
	// tokenstore.Select's deployment-based detection.
	TokenStorePreference string `mapstructure:"token_store_preference"`
}

// Default returns the out-of-the-box configuration: balanced encoder
// settings, adaptive FPS on, Balanced latency, and automatic token
// store selection.
func Default() *Config {
	return &Config{
		ListenAddress: "0.0.0.0:3389",
		LogLevel:      "info",
		LogFormat:     "text",

		BitrateKbps:             5000,
		EnableSkipFrame:         true,
		PeriodicIDRIntervalSecs: 120,
		EnableAuxOmission:       true,
		MaxAuxInterval:          30,

		AdaptiveFPSEnabled: true,
		MinFPS:             5,
		MaxFPS:             30,

		LatencyMode: "balanced",

		ClipboardWindowMs:             500,
		ClipboardMaxHistory:           10,
		ClipboardEnableContentHashing: true,

		SessionStrategyOrder: []string{"portal", "libei", "wlr_direct", "headless_local"},

		HeadlessEnabled: false,

		TokenStorePreference: "auto",
	}
}

// Load reads cfgFile (or the default search path) into viper, applies
// LAMCO_-prefixed environment overrides, unmarshals onto a Default()
// config, and validates the result.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("lamco-rdp-server")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("LAMCO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "lamco-rdp-server")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/lamco-rdp-server"
	}
	return filepath.Join(home, ".config", "lamco-rdp-server")
}
