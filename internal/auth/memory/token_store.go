// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

// Package memory provides an in-process auth.TokenStore for tests and the
// single-node dev profile.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/reddical/reddical/internal/auth"
)

type entry struct {
	userID    ulid.ULID
	expiresAt time.Time
}

// TokenStore is a mutex-guarded TTL map. Expiry is checked lazily on every
// read and delete, so correctness never depends on the janitor; the janitor
// only reclaims memory for tokens nobody consumes.
type TokenStore struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{entries: make(map[string]entry)}
}

// Set stores token -> userID with the given time-to-live.
func (s *TokenStore) Set(_ context.Context, token string, userID ulid.ULID, ttl time.Duration) error {
	if token == "" {
		return oops.Code("TOKEN_SET_FAILED").Errorf("token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = entry{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Get returns the user ID bound to a live token, or auth.ErrNotFound when
// the token is absent or expired.
func (s *TokenStore) Get(_ context.Context, token string) (ulid.ULID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok || time.Now().After(e.expiresAt) {
		return ulid.ULID{}, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return e.userID, nil
}

// Delete removes a token and reports whether a live entry was removed. The
// check-and-remove happens under one lock acquisition, so of N concurrent
// deletes for a token exactly one reports true.
func (s *TokenStore) Delete(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return false, nil
	}
	delete(s.entries, token)
	if time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// StartJanitor sweeps expired entries every interval until the returned stop
// function is called.
func (s *TokenStore) StartJanitor(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

func (s *TokenStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
		}
	}
}

// Len reports the number of stored entries, live or not yet swept.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
