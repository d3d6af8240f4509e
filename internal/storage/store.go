// Package storage provides the durable key-value backends behind the session
// store. Values are opaque strings; the file and sqlite backends seal every
// value with AES-GCM under a passphrase-derived key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrCorrupted  = errors.New("storage corrupted")
	ErrBadBackend = errors.New("unknown storage backend")
)

// Store is the get/set/delete capability the session store persists through.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and parameterizes a backend.
type Options struct {
	Backend    string
	Path       string
	Passphrase string
}

// Open returns the backend named by opts.Backend. A file store that cannot be
// parsed is moved aside to <path>.corrupt and replaced by an empty one.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		f, err := OpenFile(opts.Path, []byte(opts.Passphrase))
		if errors.Is(err, ErrCorrupted) {
			moved, qerr := quarantine(opts.Path)
			if qerr != nil {
				return nil, errors.Join(err, qerr)
			}
			slog.Warn("Session storage was unreadable and has been reset", "path", opts.Path, "moved_to", moved, "err", err)
			return OpenFile(opts.Path, []byte(opts.Passphrase))
		}
		return f, err
	case BackendSQLite:
		return OpenSQLite(ctx, opts.Path, []byte(opts.Passphrase))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadBackend, opts.Backend)
	}
}
