// Package token holds the in-memory OAuth token state for each provider.
package token

import "sync"

// Provider identifies an external health-data source.
type Provider string

// Supported providers.
const (
	ProviderStrava Provider = "strava"
	ProviderOura   Provider = "oura"
)

// Pair is the access/refresh credential pair for one provider. Either field
// may be empty when the provider has never been connected.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Store keeps at most one Pair per provider. Pairs are read and replaced
// wholesale, never partially mutated, so readers always observe a
// consistent pair. Tokens live only for the lifetime of the process.
type Store struct {
	mu    sync.RWMutex
	pairs map[Provider]Pair
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{pairs: make(map[Provider]Pair)}
}

// Get returns the current pair for a provider, zero-valued when unset.
func (s *Store) Get(p Provider) Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairs[p]
}

// Set replaces the stored pair for a provider.
func (s *Store) Set(p Provider, pair Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[p] = pair
}

// ClearAccess drops the access token for a provider while keeping the
// refresh token, marking the provider as needing reauthorization.
func (s *Store) ClearAccess(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := s.pairs[p]
	pair.AccessToken = ""
	s.pairs[p] = pair
}

// Connected reports whether an access token is currently stored.
func (s *Store) Connected(p Provider) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairs[p].AccessToken != ""
}
