package profile

import (
	_ "embed"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

//go:embed quirks.yaml
var quirksYAML []byte

type quirkTableEntry struct {
	WaylandProtocols      []string `yaml:"waylandProtocols"`
	PortalBackend         string   `yaml:"portalBackend"`
	RecommendedCapture    string   `yaml:"recommendedCapture"`
	RecommendedBufferType string   `yaml:"recommendedBufferType"`
	RecommendedFpsCap     uint32   `yaml:"recommendedFpsCap"`
	PortalTimeoutMs       uint64   `yaml:"portalTimeoutMs"`
	Quirks                []string `yaml:"quirks"`
}

type quirkTable struct {
	Compositors map[string]quirkTableEntry `yaml:"compositors"`
}

var table quirkTable

func init() {
	if err := yaml.Unmarshal(quirksYAML, &table); err != nil {
		panic("profile: embedded quirks.yaml is malformed: " + err.Error())
	}
}

var knownQuirks = map[string]Quirk{
	QuirkRequiresWaylandSession.ID:  QuirkRequiresWaylandSession,
	QuirkSlowPortalPermissions.ID:   QuirkSlowPortalPermissions,
	QuirkPoorDmaBufSupport.ID:       QuirkPoorDmaBufSupport,
	QuirkNeedsCursorComposite.ID:    QuirkNeedsCursorComposite,
	QuirkInconsistentFrameTiming.ID: QuirkInconsistentFrameTiming,
	QuirkInaccurateScreenSize.ID:    QuirkInaccurateScreenSize,
	QuirkRestartCaptureOnResize.ID:  QuirkRestartCaptureOnResize,
	QuirkClipboardExtraHandshake.ID: QuirkClipboardExtraHandshake,
	QuirkMultiMonitorPosition.ID:    QuirkMultiMonitorPosition,
	QuirkLimitedBufferFormats.ID:    QuirkLimitedBufferFormats,
	QuirkSessionTimeoutOnIdle.ID:    QuirkSessionTimeoutOnIdle,
	QuirkColorSpace.ID:              QuirkColorSpace,
	QuirkAvc444Unreliable.ID:        QuirkAvc444Unreliable,
	QuirkClipboardUnavailable.ID:    QuirkClipboardUnavailable,
}

func tableKey(kind CompositorKind) string {
	switch kind {
	case Gnome:
		return "gnome"
	case KDE:
		return "kde"
	case Sway:
		return "sway"
	case Hyprland:
		return "hyprland"
	case Weston:
		return "weston"
	case Cosmic:
		return "cosmic"
	case Wlroots:
		return "wlroots"
	default:
		return "unknown"
	}
}

func parseCaptureBackend(s string) CaptureBackend {
	if s == "wlr-screencopy" {
		return WlrScreencopy
	}
	return Portal
}

func parseBufferType(s string) BufferType {
	switch s {
	case "memfd":
		return MemFd
	case "dma-buf":
		return DmaBuf
	default:
		return AnyBuffer
	}
}

// ForCompositor builds a CompositorProfile for c, combining the static
// per-compositor table with dynamic quirks derived from version and OS
// detection (the GNOME 45+ damage-hints bump, the RHEL 9 AVC444/clipboard
// quirks, KDE Plasma 6 explicit sync).
func ForCompositor(c Compositor, os *OSRelease) CompositorProfile {
	entry, ok := table.Compositors[tableKey(c.Kind)]
	if !ok {
		entry = table.Compositors["unknown"]
	}

	quirks := make([]Quirk, 0, len(entry.Quirks)+2)
	for _, id := range entry.Quirks {
		if q, ok := knownQuirks[id]; ok {
			quirks = append(quirks, q)
		}
	}

	p := CompositorProfile{
		Compositor:            c,
		WaylandProtocols:      entry.WaylandProtocols,
		PortalBackend:         entry.PortalBackend,
		RecommendedCapture:    parseCaptureBackend(entry.RecommendedCapture),
		RecommendedBufferType: parseBufferType(entry.RecommendedBufferType),
		RecommendedFPSCap:     entry.RecommendedFpsCap,
		PortalTimeoutMs:       entry.PortalTimeoutMs,
		Quirks:                quirks,
	}

	switch c.Kind {
	case Gnome:
		major, _ := majorVersion(c.Version)
		p.SupportsDamageHints = major >= 45
		p.SupportsExplicitSync = false
		if os != nil && os.IsRHEL9() {
			p.Quirks = append(p.Quirks, QuirkAvc444Unreliable, QuirkClipboardUnavailable)
			logging.L("profile").Info("RHEL 9 detected, applying platform quirks: AVC444 disabled, clipboard unavailable",
				"osVersion", os.VersionID)
		}
	case KDE:
		major, _ := majorVersion(c.Version)
		plasma6 := major >= 6
		p.SupportsDamageHints = plasma6
		p.SupportsExplicitSync = plasma6
		if !plasma6 {
			p.Quirks = append(p.Quirks, QuirkMultiMonitorPosition)
		}
	case Sway, Hyprland, Wlroots:
		p.SupportsDamageHints = true
		p.SupportsExplicitSync = true
	case Cosmic:
		p.SupportsDamageHints = true
		p.SupportsExplicitSync = true
	default:
		p.SupportsDamageHints = false
		p.SupportsExplicitSync = false
	}

	return p
}

func majorVersion(version string) (int, bool) {
	if version == "" {
		return 0, false
	}
	parts := strings.SplitN(version, ".", 2)
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	return n, true
}
