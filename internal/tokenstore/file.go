package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/lamco/wayland-rdp-server/internal/secmem"
)

const hkdfInfo = "lamco-rdp-server token store v1"

// fileStore is the universal fallback: tokens are AES-256-GCM encrypted
// with a key derived via HKDF-SHA256 over /etc/machine-id, so the file
// is useless if copied to another host.
type fileStore struct {
	path string
	log  *slog.Logger
}

func newFileStore(log *slog.Logger) *fileStore {
	return &fileStore{path: tokenFilePath(), log: log}
}

func tokenFilePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(dataHome, "lamco-rdp-server", "tokens.bin")
}

func (f *fileStore) Method() Method         { return MethodEncryptedFile }
func (f *fileStore) Encryption() Encryption { return EncryptionAES256GCM }

type fileRecord struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func (f *fileStore) Get(key string) (*secmem.SecureString, bool, error) {
	records, err := f.readAll()
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
		return nil, false, fmt.Errorf("tokenstore: decrypt %q: %w", key, err)
	}
	defer zero(plaintext)

	return secmem.NewSecureString(string(plaintext)), true, nil
}

func (f *fileStore) Set(key string, token *secmem.SecureString) error {
	records, err := f.readAll()
	if err != nil {
		return err
	}

	gcm, err := f.cipher()
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("tokenstore: generate nonce: %w", err)
	}

	plaintext := []byte(token.String())
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	zero(plaintext)

	if records == nil {
		records = make(map[string]fileRecord)
	}
	records[key] = fileRecord{Nonce: nonce, Ciphertext: ciphertext}
	return f.writeAll(records)
}

func (f *fileStore) Delete(key string) error {
	records, err := f.readAll()
	if err != nil {
		return err
	}
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return f.writeAll(records)
}

func (f *fileStore) readAll() (map[string]fileRecord, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read %s: %w", f.path, err)
	}
	var records map[string]fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("tokenstore: parse %s: %w", f.path, err)
	}
	return records, nil
}

func (f *fileStore) writeAll(records map[string]fileRecord) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("tokenstore: create dir: %w", err)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("tokenstore: marshal: %w", err)
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *fileStore) cipher() (cipher.AEAD, error) {
	key, err := machineBoundKey()
	if err != nil {
		return nil, err
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// machineBoundKey derives a 32-byte AES-256 key from /etc/machine-id via
// HKDF-SHA256, so tokens encrypted on one host can't be decrypted on
// another.
func machineBoundKey() ([]byte, error) {
	id, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read /etc/machine-id: %w", err)
	}
	id = []byte(strings.TrimSpace(string(id)))

	reader := hkdf.New(sha256.New, id, nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("tokenstore: derive key: %w", err)
	}
	return key, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
