package tokenstore

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/lamco/wayland-rdp-server/internal/secmem"
)

// tpm2Store seals tokens with `systemd-creds encrypt --name=<key>`,
// binding them to this machine's TPM 2.0 so the sealed blob is useless
// off-host even to someone with root.
type tpm2Store struct {
	dir string
}

func newTPM2Store() (*tpm2Store, error) {
	dir := filepath.Dir(tokenFilePath())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: create dir: %w", err)
	}
	return &tpm2Store{dir: dir}, nil
}

func (t *tpm2Store) Method() Method         { return MethodTPM2 }
func (t *tpm2Store) Encryption() Encryption { return EncryptionTPMBound }

func (t *tpm2Store) sealedPath(key string) string {
	return filepath.Join(t.dir, "tpm-"+key+".cred")
}

func (t *tpm2Store) Get(key string) (*secmem.SecureString, bool, error) {
	path := t.sealedPath(key)
	if _, err := os.Stat(path); err != nil {
		return nil, false, nil
	}

	out, err := exec.Command("systemd-creds", "decrypt", "--name="+key, path, "-").Output()
	if err != nil {
		return nil, false, fmt.Errorf("tokenstore: systemd-creds decrypt: %w", err)
	}
	defer zero(out)

	return secmem.NewSecureString(string(out)), true, nil
}

func (t *tpm2Store) Set(key string, token *secmem.SecureString) error {
	plaintext := []byte(token.String())
	defer zero(plaintext)

	cmd := exec.Command("systemd-creds", "encrypt", "--name="+key, "--with-key=tpm2", "-", t.sealedPath(key))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("tokenstore: systemd-creds stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("tokenstore: systemd-creds encrypt: %w", err)
	}
	if _, err := stdin.Write(plaintext); err != nil {
		stdin.Close()
		return fmt.Errorf("tokenstore: systemd-creds write: %w", err)
	}
	stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("tokenstore: systemd-creds encrypt: %w", err)
	}
	return nil
}

func (t *tpm2Store) Delete(key string) error {
	err := os.Remove(t.sealedPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
