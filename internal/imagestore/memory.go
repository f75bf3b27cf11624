package imagestore

import (
	"context"
	"io"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested object key does not exist.
var ErrNotFound = errors.New("object not found")

// MemoryStore keeps image objects in a map. It backs tests and deployments
// without object storage configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put reads r fully and stores the bytes under key.
func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "read object")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

// Remove deletes the object under key.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// URL resolves key to an opaque in-memory scheme.
func (s *MemoryStore) URL(key string) string {
	return "memory://" + key
}

// Get returns the stored bytes for key. Test helper.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}
