package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type ScratchStorage interface {
	EnsureDir() error
	NewPath(prefix, ext string) string
	Delete(path string) error
}

type scratchStorage struct {
	dir string
}

func NewScratchStorage(dir string) ScratchStorage {
	return &scratchStorage{
		dir: dir,
	}
}

func (s *scratchStorage) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}

	return nil
}

// NewPath returns a unique path inside the scratch directory. Nothing is
// created on disk.
func (s *scratchStorage) NewPath(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", prefix, uuid.New().String(), ext))
}

func (s *scratchStorage) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete scratch file: %w", err)
	}
	return nil
}

// ScratchFile is a local artifact handed to the orchestrator. Release must be
// called on every exit path; files the pipeline does not own are left alone.
type ScratchFile struct {
	Path   string
	Source string
	owned  bool
	remove func(string) error
	once   sync.Once
}

func newOwnedScratch(path, source string, storage ScratchStorage) *ScratchFile {
	return &ScratchFile{Path: path, Source: source, owned: true, remove: storage.Delete}
}

func newBorrowedScratch(path, source string) *ScratchFile {
	return &ScratchFile{Path: path, Source: source}
}

func (f *ScratchFile) Release() error {
	if f == nil || !f.owned {
		return nil
	}
	var err error
	f.once.Do(func() {
		err = f.remove(f.Path)
	})
	return err
}
