package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore keeps uploads in one subdirectory per kind under a base
// directory, e.g. uploads/images and uploads/attachments.
type DiskStore struct {
	baseDir string
	maxSize int64
}

// NewDiskStore creates the per-kind directories and returns a store rooted
// at baseDir.
func NewDiskStore(baseDir string, maxSize int64) (*DiskStore, error) {
	for _, kind := range []Kind{KindImage, KindAttachment} {
		dir := filepath.Join(baseDir, string(kind))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
		}
	}
	return &DiskStore{baseDir: baseDir, maxSize: maxSize}, nil
}

// Dir returns the directory files of the given kind are stored in.
func (s *DiskStore) Dir(kind Kind) string {
	return filepath.Join(s.baseDir, string(kind))
}

func (s *DiskStore) Save(kind Kind, data []byte, originalName string) (string, error) {
	if err := Validate(kind, data, originalName, s.maxSize); err != nil {
		return "", err
	}
	name := storedName(kind, originalName)
	path := filepath.Join(s.Dir(kind), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return name, nil
}

func (s *DiskStore) Delete(kind Kind, name string) error {
	if name == "" {
		return nil
	}
	// filepath.Base guards against traversal through stored names
	path := filepath.Join(s.Dir(kind), filepath.Base(name))
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (s *DiskStore) Exists(kind Kind, name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.Dir(kind), filepath.Base(name)))
	return err == nil
}

// ListNames returns the stored names currently present for a kind, with the
// modification time of each. Used by the orphan sweeper.
func (s *DiskStore) ListNames(kind Kind) (map[string]os.FileInfo, error) {
	entries, err := os.ReadDir(s.Dir(kind))
	if err != nil {
		return nil, err
	}
	out := make(map[string]os.FileInfo, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = info
	}
	return out, nil
}
