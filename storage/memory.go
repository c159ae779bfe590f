package storage

import (
	"fmt"
	"sync"
)

// MemStore is an in-memory FileStore used by tests. It applies the same
// validation and naming rules as DiskStore and can be told to fail.
type MemStore struct {
	mu      sync.Mutex
	files   map[Kind]map[string][]byte
	maxSize int64

	// FailSaves makes every Save return an error when set.
	FailSaves bool
}

func NewMemStore(maxSize int64) *MemStore {
	return &MemStore{
		files: map[Kind]map[string][]byte{
			KindImage:      {},
			KindAttachment: {},
		},
		maxSize: maxSize,
	}
}

func (s *MemStore) Save(kind Kind, data []byte, originalName string) (string, error) {
	if err := Validate(kind, data, originalName, s.maxSize); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves {
		return "", fmt.Errorf("save %s: store unavailable", originalName)
	}
	name := storedName(kind, originalName)
	buf := make([]byte, len(data))
	copy(buf, data)
	s.files[kind][name] = buf
	return name, nil
}

func (s *MemStore) Delete(kind Kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files[kind], name)
	return nil
}

func (s *MemStore) Exists(kind Kind, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[kind][name]
	return ok
}

// Count reports how many files of a kind are held. Test helper.
func (s *MemStore) Count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files[kind])
}

// Names returns the stored names of a kind. Test helper.
func (s *MemStore) Names(kind Kind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files[kind]))
	for name := range s.files[kind] {
		out = append(out, name)
	}
	return out
}
