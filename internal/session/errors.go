package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSession     = errors.New("sign in requires a user id and a token")
	ErrNotAuthenticated   = errors.New("no user is signed in")
	ErrAlreadyInitialized = errors.New("session store already initialized")
	ErrNotInitialized     = errors.New("session store not initialized")
)

// PersistError reports that the in-memory transition succeeded but writing it
// to durable storage did not. Callers may ignore it.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: session not persisted: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
