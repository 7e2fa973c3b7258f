package options

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"autoblog/pkg/host"

	"gopkg.in/yaml.v3"
)

// File keeps every option in a single YAML document. The document is read on
// every Get so that edits made by another process are picked up.
type File struct {
	path string
	mu   sync.Mutex
}

var _ host.OptionStore = (*File)(nil)

// NewFile creates a store backed by the YAML file at path. The file is
// created on the first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) load() (map[string]map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	doc := map[string]map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse options file: %w", err)
	}
	return doc, nil
}

func (f *File) save(doc map[string]map[string]any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create options directory: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write options file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace options file: %w", err)
	}
	return nil
}

func (f *File) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return cloneMap(v), true, nil
}

func (f *File) Set(ctx context.Context, key string, value map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[key] = cloneMap(value)
	return f.save(doc)
}

func (f *File) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.save(doc)
}
