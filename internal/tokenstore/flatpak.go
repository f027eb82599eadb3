package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/godbus/dbus/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/lamco/wayland-rdp-server/internal/secmem"
)

const (
	secretPortalBus   = "org.freedesktop.portal.Desktop"
	secretPortalPath  = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	secretPortalIface = "org.freedesktop.portal.Secret"
)

// flatpakPortalStore keeps the same on-disk record format as fileStore
// but derives its AES-256 key from the host keyring's master secret,
// obtained through the Flatpak Secret Portal (RetrieveSecret), instead
// of /etc/machine-id (inaccessible from inside the sandbox).
type flatpakPortalStore struct {
	conn *dbus.Conn
	file *fileStore
}

func newFlatpakPortalStore(conn *dbus.Conn) (*flatpakPortalStore, error) {
	if _, err := retrievePortalSecret(conn); err != nil {
		return nil, err
	}
	return &flatpakPortalStore{conn: conn, file: newFileStore(nil)}, nil
}

func (f *flatpakPortalStore) Method() Method         { return MethodFlatpakSecretPortal }
func (f *flatpakPortalStore) Encryption() Encryption { return EncryptionHostKeyring }

func (f *flatpakPortalStore) Get(key string) (*secmem.SecureString, bool, error) {
	records, err := f.file.readAll()
	if err != nil {
		return nil, false, err
	}
	rec, ok := records[key]
	if !ok {
		return nil, false, nil
	}

	gcm, err := f.cipher()
	if err != nil {
		return nil, false, err
	}
	plaintext, err := gcm.Open(nil, rec.Nonce, rec.Ciphertext, nil)
	if err != nil {
		return nil, false, fmt.Errorf("tokenstore: portal decrypt %q: %w", key, err)
	}
	defer zero(plaintext)

	return secmem.NewSecureString(string(plaintext)), true, nil
}

func (f *flatpakPortalStore) Set(key string, token *secmem.SecureString) error {
	records, err := f.file.readAll()
	if err != nil {
		return err
	}
	gcm, err := f.cipher()
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("tokenstore: nonce: %w", err)
	}

	plaintext := []byte(token.String())
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	zero(plaintext)

	if records == nil {
		records = make(map[string]fileRecord)
	}
	records[key] = fileRecord{Nonce: nonce, Ciphertext: ciphertext}
	return f.file.writeAll(records)
}

func (f *flatpakPortalStore) Delete(key string) error {
	return f.file.Delete(key)
}

func (f *flatpakPortalStore) cipher() (cipher.AEAD, error) {
	secret, err := retrievePortalSecret(f.conn)
	if err != nil {
		return nil, err
	}
	defer zero(secret)

	reader := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("tokenstore: derive portal key: %w", err)
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// retrievePortalSecret calls org.freedesktop.portal.Secret.RetrieveSecret,
// which writes a per-app host-keyring-derived master secret into the
// write end of a pipe we supply, and returns the bytes read from the
// other end.
func retrievePortalSecret(conn *dbus.Conn) ([]byte, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("tokenstore: pipe: %w", err)
	}
	defer r.Close()
	defer w.Close()

	portal := conn.Object(secretPortalBus, secretPortalPath)
	options := map[string]dbus.Variant{}
	var requestPath dbus.ObjectPath
	call := portal.Call(secretPortalIface+".RetrieveSecret", 0, dbus.UnixFD(w.Fd()), options)
	if call.Err != nil {
		return nil, fmt.Errorf("tokenstore: RetrieveSecret: %w", call.Err)
	}
	if err := call.Store(&requestPath); err != nil {
		return nil, fmt.Errorf("tokenstore: RetrieveSecret reply: %w", err)
	}

	w.Close()
	secret, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read portal secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("tokenstore: portal returned empty secret")
	}
	return secret, nil
}
