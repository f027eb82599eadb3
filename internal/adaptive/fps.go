// Package adaptive implements the frame-rate and encode-timing
// controllers that trade latency for bandwidth/CPU based on observed
// screen activity.
package adaptive

import (
	"time"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

var fpsLog = logging.L("adaptive.fps")

// ActivityLevel classifies recent screen damage into a coarse
// bucket used to pick a target frame rate.
type ActivityLevel int

const (
	ActivityStatic ActivityLevel = iota
	ActivityLow
	ActivityMedium
	ActivityHigh
)

func (a ActivityLevel) String() string {
	switch a {
	case ActivityStatic:
		return "static"
	case ActivityLow:
		return "low"
	case ActivityMedium:
		return "medium"
	case ActivityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// fpsMultiplier maps an activity level to its position within
// [min_fps, max_fps]; Static is handled separately (always min_fps).
func (a ActivityLevel) fpsMultiplier() float32 {
	switch a {
	case ActivityLow:
		return 0.5
	case ActivityMedium:
		return 0.67
	case ActivityHigh:
		return 1.0
	default:
		return 0.0
	}
}

// FPSConfig tunes the adaptive controller's thresholds and ramp speed.
type FPSConfig struct {
	Enabled                bool
	MinFPS                 uint32
	MaxFPS                 uint32
	HistorySize            int
	HighActivityThreshold  float32
	MediumActivityThreshold float32
	LowActivityThreshold   float32
	RampUpFrames           int
	RampDownFrames         int
}

// DefaultFPSConfig mirrors the controller's out-of-the-box tuning:
// 5-30 FPS, 10-frame damage history, 1%/10%/30% activity thresholds,
// fast ramp-up (2 frames) and slow ramp-down (5 frames).
func DefaultFPSConfig() FPSConfig {
	return FPSConfig{
		Enabled:                 true,
		MinFPS:                  5,
		MaxFPS:                  30,
		HistorySize:             10,
		HighActivityThreshold:   0.30,
		MediumActivityThreshold: 0.10,
		LowActivityThreshold:    0.01,
		RampUpFrames:            2,
		RampDownFrames:          5,
	}
}

// FPSStats tracks controller activity for diagnostics.
type FPSStats struct {
	FramesProcessed  uint64
	FramesSkipped    uint64
	TimeAtStatic     time.Duration
	TimeAtLow        time.Duration
	TimeAtMedium     time.Duration
	TimeAtHigh       time.Duration
	LastLevelChange  time.Time
}

// Controller adjusts target frame rate from a rolling average of
// per-frame damage ratios, ramping activity-level transitions to
// avoid visible FPS jitter.
type Controller struct {
	config        FPSConfig
	currentFPS    uint32
	activityLevel ActivityLevel
	damageHistory []float32
	lastFrameTime time.Time
	framesAtLevel int
	stats         FPSStats
}

// NewController creates a controller starting at max FPS and assuming
// High activity (matches the lineage's "start assuming activity" bias,
// which avoids an artificial stutter at connection time).
func NewController(config FPSConfig) *Controller {
	return &Controller{
		config:        config,
		currentFPS:    config.MaxFPS,
		activityLevel: ActivityHigh,
		damageHistory: make([]float32, 0, config.HistorySize),
		lastFrameTime: time.Now(),
	}
}

// Update folds a new frame's damage ratio (0.0-1.0) into the rolling
// window, recomputes activity level with ramping, and adjusts the
// target FPS. No-op when the controller is disabled.
func (c *Controller) Update(damageRatio float32) {
	if !c.config.Enabled {
		return
	}

	now := time.Now()
	c.damageHistory = append(c.damageHistory, damageRatio)
	if len(c.damageHistory) > c.config.HistorySize {
		c.damageHistory = c.damageHistory[len(c.damageHistory)-c.config.HistorySize:]
	}

	avgDamage := c.averageDamage()

	var targetLevel ActivityLevel
	switch {
	case avgDamage >= c.config.HighActivityThreshold:
		targetLevel = ActivityHigh
	case avgDamage >= c.config.MediumActivityThreshold:
		targetLevel = ActivityMedium
	case avgDamage >= c.config.LowActivityThreshold:
		targetLevel = ActivityLow
	default:
		targetLevel = ActivityStatic
	}

	newLevel := c.applyRamping(targetLevel)

	if newLevel != c.activityLevel {
		fpsLog.Debug("activity level changed",
			"from", c.activityLevel, "to", newLevel, "avg_damage_pct", avgDamage*100)
		c.stats.LastLevelChange = now
		c.framesAtLevel = 0
	}

	if !c.stats.LastLevelChange.IsZero() {
		elapsed := now.Sub(c.stats.LastLevelChange)
		switch c.activityLevel {
		case ActivityStatic:
			c.stats.TimeAtStatic += elapsed
		case ActivityLow:
			c.stats.TimeAtLow += elapsed
		case ActivityMedium:
			c.stats.TimeAtMedium += elapsed
		case ActivityHigh:
			c.stats.TimeAtHigh += elapsed
		}
	}

	c.activityLevel = newLevel
	c.framesAtLevel++
	c.currentFPS = c.calculateTargetFPS()
	c.stats.FramesProcessed++
}

// ShouldCaptureFrame reports whether enough time has elapsed since the
// last captured frame to honor the current target FPS, advancing the
// internal pacing clock as a side effect when it returns true.
func (c *Controller) ShouldCaptureFrame() bool {
	fps := c.currentFPS
	if !c.config.Enabled {
		fps = c.config.MaxFPS
	}

	interval := time.Duration(float64(time.Second) / float64(fps))
	if time.Since(c.lastFrameTime) >= interval {
		c.lastFrameTime = time.Now()
		return true
	}
	if c.config.Enabled {
		c.stats.FramesSkipped++
	}
	return false
}

// CurrentFPS returns the controller's current target frame rate.
func (c *Controller) CurrentFPS() uint32 { return c.currentFPS }

// ActivityLevel returns the controller's current activity classification.
func (c *Controller) ActivityLevel() ActivityLevel { return c.activityLevel }

// Stats returns a copy of the controller's running statistics.
func (c *Controller) Stats() FPSStats { return c.stats }

// ResetStats zeroes the controller's statistics.
func (c *Controller) ResetStats() { c.stats = FPSStats{} }

// IsEnabled reports whether adaptive FPS is active.
func (c *Controller) IsEnabled() bool { return c.config.Enabled }

// SetEnabled toggles adaptive FPS at runtime; disabling pins the
// target FPS back to MaxFPS.
func (c *Controller) SetEnabled(enabled bool) {
	c.config.Enabled = enabled
	if !enabled {
		c.currentFPS = c.config.MaxFPS
	}
}

func (c *Controller) averageDamage() float32 {
	if len(c.damageHistory) == 0 {
		return 0
	}
	var sum float32
	for _, d := range c.damageHistory {
		sum += d
	}
	return sum / float32(len(c.damageHistory))
}

// applyRamping moves activity level one step at a time toward the
// target: fast ramp-up (RampUpFrames) responds quickly to new
// activity, slow ramp-down (RampDownFrames) avoids dropping FPS the
// instant the screen goes briefly idle.
func (c *Controller) applyRamping(target ActivityLevel) ActivityLevel {
	if target > c.activityLevel {
		if c.framesAtLevel >= c.config.RampUpFrames {
			return target
		}
		switch c.activityLevel {
		case ActivityStatic:
			return ActivityLow
		case ActivityLow:
			return ActivityMedium
		case ActivityMedium:
			return ActivityHigh
		default:
			return ActivityHigh
		}
	}

	if target < c.activityLevel {
		if c.framesAtLevel >= c.config.RampDownFrames {
			switch c.activityLevel {
			case ActivityHigh:
				return ActivityMedium
			case ActivityMedium:
				return ActivityLow
			case ActivityLow:
				return ActivityStatic
			default:
				return ActivityStatic
			}
		}
	}

	return c.activityLevel
}

func (c *Controller) calculateTargetFPS() uint32 {
	multiplier := c.activityLevel.fpsMultiplier()
	if multiplier == 0 {
		return c.config.MinFPS
	}
	fpsRange := float32(c.config.MaxFPS - c.config.MinFPS)
	fps := c.config.MinFPS + uint32(fpsRange*multiplier)
	if fps < c.config.MinFPS {
		return c.config.MinFPS
	}
	if fps > c.config.MaxFPS {
		return c.config.MaxFPS
	}
	return fps
}
