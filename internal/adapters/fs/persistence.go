package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const fileSuffix = ".json"

// Persistence implements ports.LocalPersistence with one file per key.
type Persistence struct {
	dir string
}

// NewPersistence creates a Persistence rooted at dir. The directory is
// created on first write.
func NewPersistence(dir string) *Persistence {
	return &Persistence{dir: dir}
}

// Get returns the contents of the key's file. A missing file is not an error.
func (p *Persistence) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(p.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set replaces the key's file atomically: write to a temp file, then rename.
func (p *Persistence) Set(ctx context.Context, key, value string) error {
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return err
	}

	path := p.Path(key)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	// The rename is only atomic for data that reached the disk.
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Remove deletes the key's file. Removing a missing key is not an error.
func (p *Persistence) Remove(ctx context.Context, key string) error {
	err := os.Remove(p.Path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns the file backing key.
func (p *Persistence) Path(key string) string {
	return filepath.Join(p.dir, fileName(key))
}

// fileName maps a key onto a single safe path element.
func fileName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	if name == "" || strings.Trim(name, ".") == "" {
		name = "_" + name
	}
	return name + fileSuffix
}
