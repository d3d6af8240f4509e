package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// fileFormat is the on-disk layout. encoding/json writes []byte as base64.
type fileFormat struct {
	Salt    []byte            `json:"salt"`
	Entries map[string][]byte `json:"entries"`
}

// File keeps every entry in a single encrypted JSON file. Writes go through a
// temp file and rename so a crash never leaves a half-written store.
type File struct {
	path   string
	sealer *sealer
	data   fileFormat
	mu     sync.Mutex
}

// OpenFile loads path, creating the salt for a new store on first write.
func OpenFile(path string, passphrase []byte) (*File, error) {
	if path == "" {
		return nil, errors.New("file storage requires a path")
	}

	f := &File{path: path}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		salt, err := newSalt()
		if err != nil {
			return nil, err
		}
		f.data = fileFormat{Salt: salt, Entries: map[string][]byte{}}
	case err != nil:
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	default:
		if err := json.Unmarshal(raw, &f.data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if len(f.data.Salt) != saltSize {
			return nil, fmt.Errorf("%w: bad salt length %d", ErrCorrupted, len(f.data.Salt))
		}
		if f.data.Entries == nil {
			f.data.Entries = map[string][]byte{}
		}
	}

	s, err := newSealer(passphrase, f.data.Salt)
	if err != nil {
		return nil, err
	}
	f.sealer = s
	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sealed, ok := f.data.Entries[key]
	if !ok {
		return "", ErrNotFound
	}
	plain, err := f.sealer.open(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", key, err)
	}
	return string(plain), nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sealed, err := f.sealer.seal([]byte(value))
	if err != nil {
		return err
	}

	prev, had := f.data.Entries[key]
	f.data.Entries[key] = sealed
	if err := f.flush(); err != nil {
		if had {
			f.data.Entries[key] = prev
		} else {
			delete(f.data.Entries, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data.Entries[key]
	if !had {
		return nil
	}
	delete(f.data.Entries, key)
	if err := f.flush(); err != nil {
		f.data.Entries[key] = prev
		return err
	}
	return nil
}

func (f *File) Close() error { return nil }

// quarantine renames a corrupt store file out of the way and returns its new
// path.
func quarantine(path string) (string, error) {
	moved := path + ".corrupt"
	if err := os.Rename(path, moved); err != nil {
		return "", fmt.Errorf("failed to move corrupt storage file: %w", err)
	}
	return moved, nil
}

func (f *File) flush() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("failed to encode storage file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".shelfscan-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close storage file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}
