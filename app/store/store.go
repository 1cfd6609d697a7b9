// Package store provides persisted visitor preference storage.
package store

import (
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned when a preference is not found in the store.
var ErrNotFound = errors.New("preference not found")

// RWLocker is a read-write lock, a real mutex for sqlite and a no-op for postgres.
type RWLocker interface {
	RLock()
	RUnlock()
	Lock()
	Unlock()
}

var _ RWLocker = (*sync.RWMutex)(nil)

type noopLocker struct{}

func (noopLocker) RLock()   {}
func (noopLocker) RUnlock() {}
func (noopLocker) Lock()    {}
func (noopLocker) Unlock()  {}

// NormalizeKey trims whitespace and lowercases a preference key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
