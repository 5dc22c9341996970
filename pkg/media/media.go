package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store uploads an artifact and returns a stable, publicly fetchable URL.
// The ticket flow treats the returned URL as opaque; swapping in a
// cloud-backed implementation only requires satisfying this interface.
type Store interface {
	Store(sourcePath, folder string) (string, error)
	Delete(ref string) error
}

type localStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore serves uploads from basePath under baseURL (the transport
// layer mounts basePath as a static route).
func NewLocalStore(basePath, baseURL string) Store {
	return &localStore{basePath: basePath, baseURL: baseURL}
}

func (s *localStore) Store(sourcePath, folder string) (string, error) {
	name := uuid.New().String() + filepath.Ext(sourcePath)
	relPath := filepath.Join(folder, name)
	fullPath := filepath.Join(s.basePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}

	return s.baseURL + "/" + filepath.ToSlash(relPath), nil
}

func (s *localStore) Delete(ref string) error {
	rel, ok := strings.CutPrefix(ref, s.baseURL+"/")
	if !ok {
		return fmt.Errorf("ref %q is not served by this store", ref)
	}
	return os.Remove(filepath.Join(s.basePath, filepath.FromSlash(rel)))
}
