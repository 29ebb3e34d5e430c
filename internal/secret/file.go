package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

// FileKind is the reference namespace of the encrypted file store.
const FileKind = "file"

const (
	vaultFileName = "secrets.vault"
	keyFileName   = "secrets.key"
)

// FileStore keeps secrets in an encrypted vault file under dir. The vault
// is a ChaCha20-Poly1305 sealed JSON document; the key lives next to it
// with owner-only permissions. This is the plaintext-keychain fallback for
// platforms without a native credential service.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file-backed secret store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Save stores the secret and returns a "file:" reference.
func (s *FileStore) Save(secret, existingRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.readVault()
	if err != nil {
		return "", err
	}

	id := strings.TrimPrefix(existingRef, FileKind+":")
	if id == "" || id == existingRef {
		id = uuid.NewString()
	}
	secrets[id] = secret

	if err := s.writeVault(secrets); err != nil {
		return "", err
	}
	return FileKind + ":" + id, nil
}

// Resolve returns the secret behind ref.
func (s *FileStore) Resolve(ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.readVault()
	if err != nil {
		return "", err
	}
	secret, ok := secrets[strings.TrimPrefix(ref, FileKind+":")]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete removes the secret behind ref. Absence is a silent no-op.
func (s *FileStore) Delete(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.readVault()
	if err != nil {
		return err
	}
	id := strings.TrimPrefix(ref, FileKind+":")
	if _, ok := secrets[id]; !ok {
		return nil
	}
	delete(secrets, id)
	return s.writeVault(secrets)
}

func (s *FileStore) readVault() (map[string]string, error) {
	sealed, err := os.ReadFile(filepath.Join(s.dir, vaultFileName))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secret vault: %w", err)
	}

	aead, err := s.aead()
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("secret vault is truncated")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting secret vault: %w", err)
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secret vault: %w", err)
	}
	return secrets, nil
}

func (s *FileStore) writeVault(secrets map[string]string) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("encoding secret vault: %w", err)
	}

	aead, err := s.aead()
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)

	path := filepath.Join(s.dir, vaultFileName)
	tmp, err := os.CreateTemp(s.dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("creating temp vault file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing secret vault: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp vault file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("restricting vault permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing secret vault: %w", err)
	}
	return nil
}

// aead returns the vault cipher, generating the key file on first use.
func (s *FileStore) aead() (cipher.AEAD, error) {
	key, err := s.loadOrCreateKey()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initializing vault cipher: %w", err)
	}
	return aead, nil
}

func (s *FileStore) loadOrCreateKey() ([]byte, error) {
	path := filepath.Join(s.dir, keyFileName)
	key, err := os.ReadFile(path) //nolint:gosec // key path derived from store dir
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("secret key file has wrong size")
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading secret key: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating secret directory: %w", err)
	}
	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating secret key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("writing secret key: %w", err)
	}
	return key, nil
}
