// Package credstore persists the single operator credential.
//
// The store is deliberately opaque: callers can only get, set, or remove the
// one encoded credential it holds. Presence of a credential means "believed
// authenticated"; only the session machine decides whether it is valid.
package credstore

import (
	"sync"

	"github.com/retribution/retctl/internal/models"
)

// Store holds at most one credential.
type Store interface {
	// Get returns the stored credential and true, or ("", false) when empty.
	Get() (models.Credential, bool)
	// Set replaces the stored credential.
	Set(cred models.Credential) error
	// Remove clears the store. Removing from an empty store is not an error.
	Remove() error
}

// MemoryStore is a process-local Store. Nothing it holds survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	cred models.Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored credential.
func (s *MemoryStore) Get() (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred.IsZero() {
		return "", false
	}
	return s.cred, true
}

// Set replaces the stored credential.
func (s *MemoryStore) Set(cred models.Credential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return nil
}

// Remove clears the stored credential.
func (s *MemoryStore) Remove() error {
	s.mu.Lock()
	s.cred = ""
	s.mu.Unlock()
	return nil
}
