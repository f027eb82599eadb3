package tokenstore

import (
	"os"
	"os/exec"
	"strconv"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

// DeploymentContext is the environment the process is running under,
// which constrains which credential storage backends are reachable.
type DeploymentContext int

const (
	// Native is a system package run directly by a user (full access).
	Native DeploymentContext = iota
	// Flatpak is a sandboxed Flatpak install.
	Flatpak
	// SystemdUser is a systemd --user unit.
	SystemdUser
	// SystemdSystem is a systemd system-wide unit (multi-user).
	SystemdSystem
	// InitD is a non-systemd init (OpenRC, runit, ...).
	InitD
)

func (d DeploymentContext) String() string {
	switch d {
	case Native:
		return "Native Package"
	case Flatpak:
		return "Flatpak"
	case SystemdUser:
		return "systemd User Service"
	case SystemdSystem:
		return "systemd System Service"
	case InitD:
		return "initd/OpenRC"
	default:
		return "Unknown"
	}
}

// Deployment is the result of deployment detection, including the
// SystemdUser-specific linger flag (§4.O).
type Deployment struct {
	Context DeploymentContext
	// LingerEnabled is only meaningful when Context == SystemdUser: whether
	// `loginctl enable-linger` is active for the current user, i.e. the
	// user service keeps running past logout.
	LingerEnabled bool
}

// DetectDeployment determines how the process is being run: Flatpak
// sandbox, systemd user/system service, initd, or a plain native
// package, via sentinel files and environment variables.
func DetectDeployment() Deployment {
	log := logging.L("tokenstore")

	if _, err := os.Stat("/.flatpak-info"); err == nil {
		log.Info("detected Flatpak deployment")
		return Deployment{Context: Flatpak}
	}

	if _, ok := os.LookupEnv("INVOCATION_ID"); ok {
		if _, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok {
			linger := lingerEnabled()
			log.Info("detected systemd user service", "linger", linger)
			return Deployment{Context: SystemdUser, LingerEnabled: linger}
		}
		log.Info("detected systemd system service")
		return Deployment{Context: SystemdSystem}
	}

	if _, err := os.Stat("/run/systemd/system"); err == nil {
		return Deployment{Context: Native}
	}

	if _, err := os.Stat("/run/openrc"); err == nil {
		log.Info("detected OpenRC init system")
		return Deployment{Context: InitD}
	}

	log.Info("detected native package deployment")
	return Deployment{Context: Native}
}

// lingerEnabled checks for the sentinel file `loginctl enable-linger`
// leaves behind for the current user.
func lingerEnabled() bool {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("LOGNAME")
	}
	if user == "" {
		user = strconv.Itoa(os.Getuid())
	}
	_, err := os.Stat("/var/lib/systemd/linger/" + user)
	return err == nil
}

// hasTPM2 reports whether systemd-creds considers a TPM 2.0 usable on
// this host.
func hasTPM2() bool {
	out, err := exec.Command("systemd-creds", "has-tpm2").Output()
	if err != nil {
		return false
	}
	return firstLine(out) == "yes"
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
