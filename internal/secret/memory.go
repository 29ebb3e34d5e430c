package secret

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryKind is the reference namespace of the in-memory store.
const MemoryKind = "mem"

// MemoryStore keeps secrets in process memory. Intended for tests and
// non-interactive environments where nothing should touch disk.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewMemoryStore creates an empty in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: map[string]string{}}
}

// Save stores the secret and returns a "mem:" reference.
func (s *MemoryStore) Save(secret, existingRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(existingRef, MemoryKind+":")
	if id == "" || id == existingRef {
		id = uuid.NewString()
	}
	s.secrets[id] = secret
	return MemoryKind + ":" + id, nil
}

// Resolve returns the secret behind ref.
func (s *MemoryStore) Resolve(ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.secrets[strings.TrimPrefix(ref, MemoryKind+":")]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete removes the secret behind ref.
func (s *MemoryStore) Delete(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.secrets, strings.TrimPrefix(ref, MemoryKind+":"))
	return nil
}
