package profile

import "github.com/lamco/wayland-rdp-server/internal/logging"

// Probe runs the full startup detection sequence: identify the compositor,
// identify the OS release, and build the resulting CompositorProfile. This
// is the process-wide initialization point; the result is read-only for
// the lifetime of the process (§9 Design Notes, "Global state").
func Probe() CompositorProfile {
	log := logging.L("profile")

	compositor := DetectCompositor()
	log.Info("detected compositor", "compositor", compositor.String())

	os := DetectOSRelease()

	p := ForCompositor(compositor, os)

	log.Info("compositor profile built",
		"capture", p.RecommendedCapture.String(),
		"bufferType", p.RecommendedBufferType.String(),
		"damageHints", p.SupportsDamageHints,
		"explicitSync", p.SupportsExplicitSync,
		"fpsCap", p.RecommendedFPSCap,
		"quirkCount", len(p.Quirks),
	)
	for _, q := range p.Quirks {
		log.Debug("quirk active", "id", q.ID, "description", q.Description)
	}

	return p
}
