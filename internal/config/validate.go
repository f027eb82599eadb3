package config

import (
	"fmt"
	"strings"
)

var validLatencyModes = map[string]bool{
	"interactive": true, "low": true, "fast": true,
	"balanced": true, "default": true, "normal": true,
	"quality": true, "high": true, "slow": true,
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

var validStrategyNames = map[string]bool{
	"portal": true, "libei": true, "wlr_direct": true, "headless_local": true,
}

// Validate rejects inconsistent settings before any session is
// created, per §1c. It does not mutate the config; callers that want
// the teacher lineage's warn-and-clamp behavior should check
// individual fields themselves.
func (c *Config) Validate() error {
	if c.MinFPS == 0 {
		return fmt.Errorf("min_fps must be > 0")
	}
	if c.MinFPS > c.MaxFPS {
		return fmt.Errorf("min_fps (%d) must not exceed max_fps (%d)", c.MinFPS, c.MaxFPS)
	}
	if c.MaxAuxInterval == 0 {
		return fmt.Errorf("max_aux_interval must be > 0")
	}
	if !validLatencyModes[strings.ToLower(c.LatencyMode)] {
		return fmt.Errorf("latency_mode %q is not recognized", c.LatencyMode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level %q is not recognized", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q must be \"text\" or \"json\"", c.LogFormat)
	}
	if len(c.SessionStrategyOrder) == 0 {
		return fmt.Errorf("session_strategy_order must not be empty")
	}
	for _, name := range c.SessionStrategyOrder {
		if !validStrategyNames[name] {
			return fmt.Errorf("session_strategy_order: unknown strategy %q", name)
		}
	}
	if c.ClipboardMaxHistory <= 0 {
		return fmt.Errorf("clipboard_max_history must be > 0")
	}
	if c.BitrateKbps == 0 {
		return fmt.Errorf("bitrate_kbps must be > 0")
	}
	return nil
}
