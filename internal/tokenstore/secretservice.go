package tokenstore

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/lamco/wayland-rdp-server/internal/secmem"
)

const (
	secretServiceBus   = "org.freedesktop.secrets"
	secretServicePath  = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")
	serviceIface       = "org.freedesktop.Secret.Service"
	collectionIface    = "org.freedesktop.Secret.Collection"
	itemIface          = "org.freedesktop.Secret.Item"
	attributeKey       = "lamco-rdp-server-key"
)

// secretServiceBackend records which Secret Service implementation
// answered org.freedesktop.secrets, which determines the encryption
// label reported upstream (they're all accessed identically over
// D-Bus; the distinction is cosmetic).
type secretServiceBackend struct {
	method     Method
	encryption Encryption
}

func (b secretServiceBackend) Method() Method { return b.method }

// detectSecretServiceBackend lists D-Bus names on the session bus and
// reports whether a Secret Service provider is present, identifying
// GNOME Keyring / KWallet / KeePassXC by their well-known bus name
// prefixes.
func detectSecretServiceBackend(conn *dbus.Conn) (secretServiceBackend, bool) {
	var names []string
	obj := conn.BusObject()
	if err := obj.Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return secretServiceBackend{}, false
	}

	var present bool
	for _, n := range names {
		if n == secretServiceBus {
			present = true
			break
		}
	}
	if !present {
		return secretServiceBackend{}, false
	}

	for _, n := range names {
		switch {
		case strings.HasPrefix(n, "org.gnome.keyring"):
			return secretServiceBackend{MethodGnomeKeyring, EncryptionAES256GCM}, true
		case strings.HasPrefix(n, "org.kde.kwalletd"):
			return secretServiceBackend{MethodKWallet, EncryptionAES256GCM}, true
		case strings.Contains(n, "keepassxc"):
			return secretServiceBackend{MethodKeePassXC, EncryptionAES256GCM}, true
		}
	}
	// Generic provider behind the same name; assume GNOME-Keyring-like behavior.
	return secretServiceBackend{MethodGnomeKeyring, EncryptionAES256GCM}, true
}

// secretServiceStore drives the Secret Service D-Bus API
// (org.freedesktop.Secret.*) using the "plain" transfer algorithm: a
// session opened with Algorithm="plain" carries secrets unencrypted
// over the (already kernel-mediated, peer-authenticated) D-Bus
// transport, the same simplification used by other Go Secret Service
// clients.
type secretServiceStore struct {
	conn    *dbus.Conn
	backend secretServiceBackend
	session dbus.ObjectPath
}

func newSecretServiceStore(conn *dbus.Conn, backend secretServiceBackend) (*secretServiceStore, error) {
	service := conn.Object(secretServiceBus, dbus.ObjectPath("/org/freedesktop/secrets"))

	var (
		output  dbus.Variant
		session dbus.ObjectPath
	)
	call := service.Call(serviceIface+".OpenSession", 0, "plain", dbus.MakeVariant(""))
	if call.Err != nil {
		return nil, fmt.Errorf("tokenstore: OpenSession: %w", call.Err)
	}
	if err := call.Store(&output, &session); err != nil {
		return nil, fmt.Errorf("tokenstore: OpenSession reply: %w", err)
	}

	if err := ensureCollectionUnlocked(conn, service); err != nil {
		return nil, err
	}

	return &secretServiceStore{conn: conn, backend: backend, session: session}, nil
}

// ensureCollectionUnlocked unlocks the default collection if needed,
// prompting via the desktop's standard unlock dialog if one is registered.
func ensureCollectionUnlocked(conn *dbus.Conn, service dbus.BusObject) error {
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	call := service.Call(serviceIface+".Unlock", 0, []dbus.ObjectPath{secretServicePath})
	if call.Err != nil {
		return fmt.Errorf("tokenstore: Unlock: %w", call.Err)
	}
	if err := call.Store(&unlocked, &prompt); err != nil {
		return fmt.Errorf("tokenstore: Unlock reply: %w", err)
	}
	if prompt != "" && prompt != "/" {
		return promptAndWait(conn, prompt)
	}
	return nil
}

// promptAndWait calls Prompt() on the given prompt object and blocks
// until its Completed signal fires.
func promptAndWait(conn *dbus.Conn, prompt dbus.ObjectPath) error {
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(prompt),
		dbus.WithMatchInterface("org.freedesktop.Secret.Prompt"),
		dbus.WithMatchMember("Completed"),
	); err != nil {
		return fmt.Errorf("tokenstore: subscribe prompt: %w", err)
	}
	defer conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(prompt),
		dbus.WithMatchInterface("org.freedesktop.Secret.Prompt"),
		dbus.WithMatchMember("Completed"),
	)

	signals := make(chan *dbus.Signal, 1)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	obj := conn.Object(secretServiceBus, prompt)
	if call := obj.Call("org.freedesktop.Secret.Prompt.Prompt", 0, ""); call.Err != nil {
		return fmt.Errorf("tokenstore: Prompt: %w", call.Err)
	}

	sig := <-signals
	var dismissed bool
	if len(sig.Body) > 0 {
		dismissed, _ = sig.Body[0].(bool)
	}
	if dismissed {
		return fmt.Errorf("tokenstore: unlock prompt dismissed")
	}
	return nil
}

func (s *secretServiceStore) Method() Method         { return s.backend.method }
func (s *secretServiceStore) Encryption() Encryption { return s.backend.encryption }

// findItem searches the default collection for the item labeled key,
// returning its object path.
func (s *secretServiceStore) findItem(key string) (dbus.ObjectPath, bool, error) {
	collection := s.conn.Object(secretServiceBus, secretServicePath)
	attrs := map[string]string{attributeKey: key}

	var unlocked, locked []dbus.ObjectPath
	call := collection.Call(collectionIface+".SearchItems", 0, attrs)
	if call.Err != nil {
		return "", false, fmt.Errorf("tokenstore: SearchItems: %w", call.Err)
	}
	if err := call.Store(&unlocked, &locked); err != nil {
		return "", false, fmt.Errorf("tokenstore: SearchItems reply: %w", err)
	}
	if len(unlocked) == 0 {
		return "", false, nil
	}
	return unlocked[0], true, nil
}

func (s *secretServiceStore) Get(key string) (*secmem.SecureString, bool, error) {
	path, ok, err := s.findItem(key)
	if err != nil || !ok {
		return nil, false, err
	}

	item := s.conn.Object(secretServiceBus, path)
	type secretStruct struct {
		Session     dbus.ObjectPath
		Parameters  []byte
		Value       []byte
		ContentType string
	}
	var secret secretStruct
	call := item.Call(itemIface+".GetSecret", 0, s.session)
	if call.Err != nil {
		return nil, false, fmt.Errorf("tokenstore: GetSecret: %w", call.Err)
	}
	if err := call.Store(&secret); err != nil {
		return nil, false, fmt.Errorf("tokenstore: GetSecret reply: %w", err)
	}
	defer zero(secret.Value)

	return secmem.NewSecureString(string(secret.Value)), true, nil
}

func (s *secretServiceStore) Set(key string, token *secmem.SecureString) error {
	collection := s.conn.Object(secretServiceBus, secretServicePath)

	plaintext := []byte(token.String())
	defer zero(plaintext)

	secretStruct := struct {
		Session     dbus.ObjectPath
		Parameters  []byte
		Value       []byte
		ContentType string
	}{Session: s.session, Parameters: []byte{}, Value: plaintext, ContentType: "text/plain"}

	properties := map[string]dbus.Variant{
		"org.freedesktop.Secret.Item.Label":      dbus.MakeVariant("lamco-rdp-server: " + key),
		"org.freedesktop.Secret.Item.Attributes": dbus.MakeVariant(map[string]string{attributeKey: key}),
	}

	var item dbus.ObjectPath
	var prompt dbus.ObjectPath
	call := collection.Call(collectionIface+".CreateItem", 0, properties, secretStruct, true)
	if call.Err != nil {
		return fmt.Errorf("tokenstore: CreateItem: %w", call.Err)
	}
	if err := call.Store(&item, &prompt); err != nil {
		return fmt.Errorf("tokenstore: CreateItem reply: %w", err)
	}
	if prompt != "" && prompt != "/" {
		return promptAndWait(s.conn, prompt)
	}
	return nil
}

func (s *secretServiceStore) Delete(key string) error {
	path, ok, err := s.findItem(key)
	if err != nil || !ok {
		return err
	}
	item := s.conn.Object(secretServiceBus, path)
	var prompt dbus.ObjectPath
	call := item.Call(itemIface+".Delete", 0)
	if call.Err != nil {
		return fmt.Errorf("tokenstore: Delete: %w", call.Err)
	}
	if err := call.Store(&prompt); err == nil && prompt != "" && prompt != "/" {
		return promptAndWait(s.conn, prompt)
	}
	return nil
}
