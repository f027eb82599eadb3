package tokenstore

import "testing"

func TestDetectDeploymentDoesNotPanic(t *testing.T) {
	d := DetectDeployment()
	switch d.Context {
	case Native, Flatpak, SystemdUser, SystemdSystem, InitD:
	default:
		t.Fatalf("unexpected deployment context: %v", d.Context)
	}
}

func TestDeploymentContextString(t *testing.T) {
	cases := map[DeploymentContext]string{
		Native:        "Native Package",
		Flatpak:       "Flatpak",
		SystemdUser:   "systemd User Service",
		SystemdSystem: "systemd System Service",
		InitD:         "initd/OpenRC",
	}
	for ctx, want := range cases {
		if got := ctx.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", ctx, got, want)
		}
	}
}

func TestLingerEnabledDoesNotPanic(t *testing.T) {
	_ = lingerEnabled()
}
