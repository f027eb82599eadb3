package profile

import (
	"bufio"
	"os"
	"os/exec"
	"strings"
)

// DetectCompositor identifies the running compositor from environment
// variables first (XDG_CURRENT_DESKTOP, DESKTOP_SESSION, compositor-specific
// markers), then falls back to scanning for known compositor processes, and
// finally to Unknown.
func DetectCompositor() Compositor {
	if desktop, ok := os.LookupEnv("XDG_CURRENT_DESKTOP"); ok {
		if c, ok := classifyDesktopString(desktop); ok {
			return c
		}
	}

	if session, ok := os.LookupEnv("DESKTOP_SESSION"); ok {
		if c, ok := classifySessionString(session); ok {
			return c
		}
	}

	if _, ok := os.LookupEnv("SWAYSOCK"); ok {
		return Compositor{Kind: Sway, Version: detectVersion("sway", "--version")}
	}
	if _, ok := os.LookupEnv("HYPRLAND_INSTANCE_SIGNATURE"); ok {
		return Compositor{Kind: Hyprland, Version: detectVersion("hyprctl", "version")}
	}

	for proc, kind := range map[string]CompositorKind{
		"gnome-shell":  Gnome,
		"kwin_wayland": KDE,
		"sway":         Sway,
		"Hyprland":     Hyprland,
		"weston":       Weston,
		"cosmic-comp":  Cosmic,
	} {
		if isProcessRunning(proc) {
			return Compositor{Kind: kind}
		}
	}

	if name, ok := detectWlrootsCompositor(); ok {
		return Compositor{Kind: Wlroots, Name: name}
	}

	return Compositor{Kind: Unknown}
}

func classifyDesktopString(desktop string) (Compositor, bool) {
	lower := strings.ToLower(desktop)
	switch {
	case strings.Contains(lower, "gnome"):
		return Compositor{Kind: Gnome, Version: detectVersion("gnome-shell", "--version")}, true
	case strings.Contains(lower, "kde"), strings.Contains(lower, "plasma"):
		return Compositor{Kind: KDE, Version: detectVersion("plasmashell", "--version")}, true
	case strings.Contains(lower, "sway"):
		return Compositor{Kind: Sway, Version: detectVersion("sway", "--version")}, true
	case strings.Contains(lower, "hyprland"):
		return Compositor{Kind: Hyprland, Version: detectVersion("hyprctl", "version")}, true
	case strings.Contains(lower, "cosmic"):
		return Compositor{Kind: Cosmic}, true
	case strings.Contains(lower, "weston"):
		return Compositor{Kind: Weston}, true
	}
	return Compositor{}, false
}

func classifySessionString(session string) (Compositor, bool) {
	lower := strings.ToLower(session)
	switch {
	case strings.Contains(lower, "gnome"), strings.Contains(lower, "ubuntu"):
		return Compositor{Kind: Gnome, Version: detectVersion("gnome-shell", "--version")}, true
	case strings.Contains(lower, "plasma"), strings.Contains(lower, "kde"):
		return Compositor{Kind: KDE, Version: detectVersion("plasmashell", "--version")}, true
	case strings.Contains(lower, "sway"):
		return Compositor{Kind: Sway, Version: detectVersion("sway", "--version")}, true
	}
	return Compositor{}, false
}

// detectVersion runs `binary arg` and extracts the last whitespace-separated
// token of its stdout as a best-effort version string ("GNOME Shell 46.0" ->
// "46.0"). Returns "" if the binary isn't present or produces no output.
func detectVersion(binary, arg string) string {
	out, err := exec.Command(binary, arg).Output()
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func isProcessRunning(name string) bool {
	err := exec.Command("pgrep", "-x", name).Run()
	return err == nil
}

var wlrootsCompositors = []string{"labwc", "wayfire", "river", "dwl", "cage", "hikari", "phoc"}

func detectWlrootsCompositor() (string, bool) {
	for _, name := range wlrootsCompositors {
		if isProcessRunning(name) {
			return name, true
		}
	}
	return "", false
}

// OSRelease holds the fields of /etc/os-release relevant to platform
// quirks.
type OSRelease struct {
	ID        string
	VersionID string
	IDLike    []string
}

// IsRHELFamily reports whether this OS is RHEL or a RHEL derivative.
func (r OSRelease) IsRHELFamily() bool {
	if r.ID == "rhel" {
		return true
	}
	for _, id := range r.IDLike {
		if id == "rhel" {
			return true
		}
	}
	return false
}

// IsRHEL9 reports whether this is specifically RHEL 9.x.
func (r OSRelease) IsRHEL9() bool {
	return r.ID == "rhel" && strings.HasPrefix(r.VersionID, "9")
}

// DetectOSRelease parses /etc/os-release (falling back to
// /usr/lib/os-release) to identify the host distribution. Returns nil if
// neither file is readable or no ID field is present.
func DetectOSRelease() *OSRelease {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		data, err = os.ReadFile("/usr/lib/os-release")
		if err != nil {
			return nil
		}
	}

	var r OSRelease
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			r.ID = strings.ToLower(value)
		case "VERSION_ID":
			r.VersionID = value
		case "ID_LIKE":
			for _, id := range strings.Fields(value) {
				r.IDLike = append(r.IDLike, strings.ToLower(id))
			}
		}
	}

	if r.ID == "" {
		return nil
	}
	return &r
}
