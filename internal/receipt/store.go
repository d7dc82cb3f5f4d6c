package receipt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var ErrArtifactNotFound = errors.New("receipt artifact not found")

const (
	artifactPrefix = "receipt-"
	artifactExt    = ".pdf"
)

// ArtifactName - имя файла квитанции для платежа.
func ArtifactName(paymentID string) string {
	return artifactPrefix + paymentID + artifactExt
}

// PaymentIDFromPath извлекает ID платежа из пути квитанции.
func PaymentIDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, artifactPrefix) || !strings.HasSuffix(base, artifactExt) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(base, artifactPrefix), artifactExt)
	return id, id != ""
}

// Store - хранилище готовых квитанций.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	// Удаление отсутствующего файла не ошибка.
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// FSStore хранит квитанции плоским каталогом на диске.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) resolve(path string) string {
	return filepath.Join(s.root, filepath.Base(path))
}

func (s *FSStore) Put(_ context.Context, name string, data []byte) (string, error) {
	full := s.resolve(name)
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit receipt: %w", err)
	}
	return filepath.ToSlash(full), nil
}

func (s *FSStore) Get(_ context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(s.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrArtifactNotFound
	}
	return b, err
}

func (s *FSStore) Delete(_ context.Context, path string) error {
	err := os.Remove(s.resolve(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FSStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), artifactExt) {
			continue
		}
		out = append(out, filepath.ToSlash(filepath.Join(s.root, e.Name())))
	}
	return out, nil
}

// MemStore - хранилище в памяти для тестов.
type MemStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{files: map[string][]byte{}}
}

func (s *MemStore) Put(_ context.Context, name string, data []byte) (string, error) {
	path := "receipts/" + filepath.Base(name)
	s.mu.Lock()
	s.files[path] = append([]byte(nil), data...)
	s.mu.Unlock()
	return path, nil
}

func (s *MemStore) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return b, nil
}

func (s *MemStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.files, path)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok, nil
}

func (s *MemStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
