package adaptive

import (
	"fmt"
	"strings"
	"time"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

var latencyLog = logging.L("adaptive.latency")

// LatencyMode selects a professional latency/quality tradeoff preset.
type LatencyMode int

const (
	LatencyInteractive LatencyMode = iota
	LatencyBalanced
	LatencyQuality
)

// TargetLatencyMs is the mode's documented end-to-end latency budget.
func (m LatencyMode) TargetLatencyMs() uint32 {
	switch m {
	case LatencyInteractive:
		return 50
	case LatencyQuality:
		return 300
	default:
		return 100
	}
}

func (m LatencyMode) Description() string {
	switch m {
	case LatencyInteractive:
		return "Low latency (<50ms) - gaming, CAD, interactive design"
	case LatencyQuality:
		return "High quality (<300ms) - photo/video editing, color work"
	default:
		return "Balanced (<100ms) - general desktop, office work"
	}
}

func (m LatencyMode) String() string {
	switch m {
	case LatencyInteractive:
		return "Interactive"
	case LatencyQuality:
		return "Quality"
	default:
		return "Balanced"
	}
}

// ParseLatencyMode accepts the mode's canonical name plus the
// documented synonyms ("fast"/"low" -> Interactive, "default"/"normal"
// -> Balanced, "high"/"slow" -> Quality).
func ParseLatencyMode(s string) (LatencyMode, error) {
	switch strings.ToLower(s) {
	case "interactive", "low", "fast":
		return LatencyInteractive, nil
	case "balanced", "default", "normal":
		return LatencyBalanced, nil
	case "quality", "high", "slow":
		return LatencyQuality, nil
	default:
		return LatencyBalanced, fmt.Errorf("adaptive: unknown latency mode %q", s)
	}
}

type modeSettings struct {
	maxFrameDelayMs float32
	damageThreshold float32
	useAdaptiveFPS  bool
	encodeTimeoutMs uint32
}

func settingsForMode(mode LatencyMode) modeSettings {
	switch mode {
	case LatencyInteractive:
		return modeSettings{maxFrameDelayMs: 16.0, damageThreshold: 0.0, useAdaptiveFPS: false, encodeTimeoutMs: 10}
	case LatencyQuality:
		return modeSettings{maxFrameDelayMs: 100.0, damageThreshold: 0.05, useAdaptiveFPS: true, encodeTimeoutMs: 50}
	default:
		return modeSettings{maxFrameDelayMs: 33.0, damageThreshold: 0.02, useAdaptiveFPS: true, encodeTimeoutMs: 20}
	}
}

// EncodingDecision is the governor's verdict on whether/why to encode
// the current frame.
type EncodingDecision int

const (
	EncodeNow EncodingDecision = iota
	EncodeKeepalive
	EncodeBatch
	EncodeTimeout
	Skip
	WaitForMore
)

// ShouldEncode reports whether this decision means the caller should
// proceed to encode the accumulated frame.
func (d EncodingDecision) ShouldEncode() bool {
	switch d {
	case EncodeNow, EncodeKeepalive, EncodeBatch, EncodeTimeout:
		return true
	default:
		return false
	}
}

func (d EncodingDecision) String() string {
	switch d {
	case EncodeNow:
		return "encode_now"
	case EncodeKeepalive:
		return "encode_keepalive"
	case EncodeBatch:
		return "encode_batch"
	case EncodeTimeout:
		return "encode_timeout"
	case WaitForMore:
		return "wait_for_more"
	default:
		return "skip"
	}
}

type frameAccumulator struct {
	pendingDamage   float32
	firstDamageTime time.Time
	frameCount      uint32
}

func (a *frameAccumulator) reset() {
	a.pendingDamage = 0
	a.firstDamageTime = time.Time{}
	a.frameCount = 0
}

func (a *frameAccumulator) addDamage(damage float32) {
	if a.firstDamageTime.IsZero() && damage > 0 {
		a.firstDamageTime = time.Now()
	}
	a.pendingDamage += damage
	a.frameCount++
}

func (a *frameAccumulator) elapsedMs() float32 {
	if a.firstDamageTime.IsZero() {
		return 0
	}
	return float32(time.Since(a.firstDamageTime).Seconds() * 1000)
}

// LatencyMetrics tracks rolling averages and counters for diagnostics.
type LatencyMetrics struct {
	CaptureToEncodeAvgMs float32
	EncodeDurationAvgMs  float32
	TotalLatencyAvgMs    float32
	FramesEncoded        uint64
	FramesSkipped        uint64
	BatchesEncoded       uint64
}

// emaAlpha is the exponential-moving-average weight given to each new
// timing sample in RecordEncodeTiming.
const emaAlpha = 0.1

// Governor decides when to encode a frame given accumulated damage
// and a mode-specific latency target, and tracks rolling latency
// metrics for the session.
type Governor struct {
	mode            LatencyMode
	settings        modeSettings
	accumulator     frameAccumulator
	lastEncodeTime  time.Time
	metrics         LatencyMetrics
}

// NewGovernor creates a governor for the given latency mode.
func NewGovernor(mode LatencyMode) *Governor {
	return &Governor{
		mode:           mode,
		settings:       settingsForMode(mode),
		lastEncodeTime: time.Now(),
	}
}

// ShouldEncodeFrame folds damageRatio into the accumulator and
// returns the mode-specific encoding decision.
func (g *Governor) ShouldEncodeFrame(damageRatio float32) EncodingDecision {
	g.accumulator.addDamage(damageRatio)

	elapsed := g.accumulator.elapsedMs()
	pending := g.accumulator.pendingDamage

	var decision EncodingDecision
	switch g.mode {
	case LatencyInteractive:
		sinceEncodeMs := float32(time.Since(g.lastEncodeTime).Seconds() * 1000)
		switch {
		case damageRatio > g.settings.damageThreshold:
			decision = EncodeNow
		case sinceEncodeMs > g.settings.maxFrameDelayMs:
			decision = EncodeKeepalive
		default:
			decision = Skip
		}
	case LatencyQuality:
		switch {
		case pending >= g.settings.damageThreshold:
			decision = EncodeBatch
		case elapsed > g.settings.maxFrameDelayMs:
			decision = EncodeTimeout
		case pending > 0:
			decision = WaitForMore
		default:
			decision = Skip
		}
	default: // LatencyBalanced
		switch {
		case pending >= g.settings.damageThreshold:
			decision = EncodeNow
		case elapsed > g.settings.maxFrameDelayMs:
			decision = EncodeTimeout
		default:
			decision = Skip
		}
	}

	if decision.ShouldEncode() {
		g.recordEncode()
	} else {
		g.metrics.FramesSkipped++
	}

	latencyLog.Debug("encoding decision",
		"mode", g.mode, "damage_pct", damageRatio*100, "pending_pct", pending*100,
		"elapsed_ms", elapsed, "decision", decision)

	return decision
}

func (g *Governor) recordEncode() {
	g.metrics.FramesEncoded++
	if g.accumulator.frameCount > 1 {
		g.metrics.BatchesEncoded++
	}
	g.lastEncodeTime = time.Now()
	g.accumulator.reset()
}

// RecordEncodeTiming folds a capture-to-encode and encode-duration
// sample into the governor's rolling averages (simple EMA, alpha=0.1).
func (g *Governor) RecordEncodeTiming(captureToEncodeMs, encodeDurationMs float32) {
	g.metrics.CaptureToEncodeAvgMs = g.metrics.CaptureToEncodeAvgMs*(1-emaAlpha) + captureToEncodeMs*emaAlpha
	g.metrics.EncodeDurationAvgMs = g.metrics.EncodeDurationAvgMs*(1-emaAlpha) + encodeDurationMs*emaAlpha
	g.metrics.TotalLatencyAvgMs = g.metrics.CaptureToEncodeAvgMs + g.metrics.EncodeDurationAvgMs
}

// Mode returns the governor's current latency mode.
func (g *Governor) Mode() LatencyMode { return g.mode }

// SetMode switches latency mode, resetting the frame accumulator so
// the new mode's thresholds start from a clean slate.
func (g *Governor) SetMode(mode LatencyMode) {
	if mode == g.mode {
		return
	}
	latencyLog.Debug("latency mode changed", "from", g.mode, "to", mode)
	g.mode = mode
	g.settings = settingsForMode(mode)
	g.accumulator.reset()
}

// ShouldUseAdaptiveFPS reports whether the current mode pairs with
// the adaptive.Controller (Interactive always runs at max FPS instead).
func (g *Governor) ShouldUseAdaptiveFPS() bool { return g.settings.useAdaptiveFPS }

// EncodeTimeout returns the current mode's encoder wait budget.
func (g *Governor) EncodeTimeout() time.Duration {
	return time.Duration(g.settings.encodeTimeoutMs) * time.Millisecond
}

// Metrics returns a copy of the governor's running metrics.
func (g *Governor) Metrics() LatencyMetrics { return g.metrics }

// ResetMetrics zeroes the governor's metrics.
func (g *Governor) ResetMetrics() { g.metrics = LatencyMetrics{} }

// TimeSinceLastEncode returns the elapsed time since the last encode
// decision was honored.
func (g *Governor) TimeSinceLastEncode() time.Duration {
	return time.Since(g.lastEncodeTime)
}
