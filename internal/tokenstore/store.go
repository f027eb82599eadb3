// Package tokenstore selects and drives a secure-storage backend for
// persisted session tokens (e.g. XDG Desktop Portal restore tokens),
// based on the detected deployment context (§4.O).
package tokenstore

import (
	"github.com/godbus/dbus/v5"

	"github.com/lamco/wayland-rdp-server/internal/logging"
	"github.com/lamco/wayland-rdp-server/internal/secmem"
)

// Method names the backend actually selected.
type Method int

const (
	MethodNone Method = iota
	MethodGnomeKeyring
	MethodKWallet
	MethodKeePassXC
	MethodFlatpakSecretPortal
	MethodTPM2
	MethodEncryptedFile
)

func (m Method) String() string {
	switch m {
	case MethodGnomeKeyring:
		return "GNOME Keyring"
	case MethodKWallet:
		return "KDE Wallet"
	case MethodKeePassXC:
		return "KeePassXC"
	case MethodFlatpakSecretPortal:
		return "Flatpak Secret Portal"
	case MethodTPM2:
		return "TPM 2.0"
	case MethodEncryptedFile:
		return "Encrypted File"
	default:
		return "None"
	}
}

// Encryption names the cryptographic scheme protecting stored tokens.
type Encryption int

const (
	EncryptionNone Encryption = iota
	EncryptionAES256GCM
	EncryptionTPMBound
	EncryptionHostKeyring
)

func (e Encryption) String() string {
	switch e {
	case EncryptionAES256GCM:
		return "AES-256-GCM"
	case EncryptionTPMBound:
		return "TPM-Bound"
	case EncryptionHostKeyring:
		return "Host Keyring"
	default:
		return "None"
	}
}

// Store persists opaque tokens under a stable logical key (e.g.
// "default"). Implementations zeroize plaintext after use where the
// backend requires it to pass through process memory.
type Store interface {
	Method() Method
	Encryption() Encryption
	// Get returns the stored token, or ok=false if none is stored.
	Get(key string) (token *secmem.SecureString, ok bool, err error)
	Set(key string, token *secmem.SecureString) error
	Delete(key string) error
}

// Select runs the detection sequence described in §4.O and returns the
// best available Store for the given deployment context. It always
// succeeds: EncryptedFile is the universal fallback.
func Select(conn *dbus.Conn, deployment Deployment) Store {
	log := logging.L("tokenstore")

	if deployment.Context == Flatpak {
		if conn != nil && dbusNameOwned(conn, "org.freedesktop.portal.Secret") {
			log.Info("using Flatpak Secret Portal for token storage")
			if s, err := newFlatpakPortalStore(conn); err == nil {
				return s
			}
			log.Warn("Flatpak Secret Portal unavailable, falling back to encrypted file")
		}
		return newFileStore(log)
	}

	switch deployment.Context {
	case SystemdUser, SystemdSystem:
		if hasTPM2() {
			log.Info("TPM 2.0 detected, using systemd-creds for token storage")
			if s, err := newTPM2Store(); err == nil {
				return s
			}
			log.Warn("systemd-creds unavailable despite TPM 2.0, falling back")
		}
	}

	if conn != nil {
		if backend, ok := detectSecretServiceBackend(conn); ok {
			log.Info("Secret Service detected", "backend", backend.Method())
			if s, err := newSecretServiceStore(conn, backend); err == nil {
				return s
			}
			log.Warn("Secret Service detected but unusable, falling back to encrypted file")
		}
	}

	log.Info("using encrypted file storage (no Secret Service available)")
	return newFileStore(log)
}

// dbusNameOwned reports whether name currently has an owner on conn's bus.
func dbusNameOwned(conn *dbus.Conn, name string) bool {
	var has bool
	obj := conn.BusObject()
	call := obj.Call("org.freedesktop.DBus.NameHasOwner", 0, name)
	if call.Err != nil {
		return false
	}
	if err := call.Store(&has); err != nil {
		return false
	}
	return has
}
