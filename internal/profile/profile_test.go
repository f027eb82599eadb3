package profile

import "testing"

func TestGnomeProfile(t *testing.T) {
	p := ForCompositor(Compositor{Kind: Gnome, Version: "46.0"}, nil)
	if p.RecommendedBufferType != MemFd {
		t.Fatalf("buffer type = %v, want MemFd", p.RecommendedBufferType)
	}
	if !p.SupportsDamageHints {
		t.Fatal("expected damage hints for GNOME 46")
	}
	if !p.HasQuirk(QuirkRequiresWaylandSession) {
		t.Fatal("expected RequiresWaylandSession quirk")
	}
}

func TestGnomeRHEL9Quirks(t *testing.T) {
	os := &OSRelease{ID: "rhel", VersionID: "9.4"}
	p := ForCompositor(Compositor{Kind: Gnome, Version: "40.0"}, os)
	if !p.HasQuirk(QuirkAvc444Unreliable) {
		t.Fatal("expected Avc444Unreliable quirk on RHEL 9")
	}
	if !p.HasQuirk(QuirkClipboardUnavailable) {
		t.Fatal("expected ClipboardUnavailable quirk on RHEL 9")
	}
}

func TestKDEProfile(t *testing.T) {
	p := ForCompositor(Compositor{Kind: KDE, Version: "6.0"}, nil)
	if p.RecommendedBufferType != DmaBuf {
		t.Fatalf("buffer type = %v, want DmaBuf", p.RecommendedBufferType)
	}
	if !p.SupportsExplicitSync {
		t.Fatal("expected explicit sync for Plasma 6")
	}
}

func TestKDEPlasma5HasQuirk(t *testing.T) {
	p := ForCompositor(Compositor{Kind: KDE, Version: "5.27"}, nil)
	if p.SupportsExplicitSync {
		t.Fatal("Plasma 5 should not support explicit sync")
	}
	if !p.HasQuirk(QuirkMultiMonitorPosition) {
		t.Fatal("expected MultiMonitorPosition quirk on Plasma 5")
	}
}

func TestSwayProfile(t *testing.T) {
	p := ForCompositor(Compositor{Kind: Sway, Version: "1.9"}, nil)
	if p.RecommendedCapture != WlrScreencopy {
		t.Fatalf("capture = %v, want WlrScreencopy", p.RecommendedCapture)
	}
	if !p.SupportsDamageHints {
		t.Fatal("expected damage hints for sway")
	}
}

func TestUnknownProfile(t *testing.T) {
	p := ForCompositor(Compositor{Kind: Unknown}, nil)
	if p.RecommendedCapture != Portal {
		t.Fatalf("capture = %v, want Portal", p.RecommendedCapture)
	}
	if !p.HasQuirk(QuirkPoorDmaBufSupport) {
		t.Fatal("expected PoorDmaBufSupport quirk")
	}
	if p.PortalTimeoutMs != 60000 {
		t.Fatalf("timeout = %d, want 60000", p.PortalTimeoutMs)
	}
}

func TestOSReleaseRHELDetection(t *testing.T) {
	r := OSRelease{ID: "rhel", VersionID: "9.4", IDLike: nil}
	if !r.IsRHELFamily() || !r.IsRHEL9() {
		t.Fatal("expected RHEL 9 family detection")
	}

	derivative := OSRelease{ID: "rocky", VersionID: "9.3", IDLike: []string{"rhel", "fedora"}}
	if !derivative.IsRHELFamily() {
		t.Fatal("expected rhel-like derivative to be detected as RHEL family")
	}
	if derivative.IsRHEL9() {
		t.Fatal("IsRHEL9 should require exact rhel ID, not ID_LIKE")
	}
}
