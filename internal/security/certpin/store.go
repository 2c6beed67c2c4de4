// Package certpin maintains the per-domain certificate fingerprint allow-list.
//
// Pinning is opt-in: a domain with no entry verifies trust-by-default. That
// default-allow policy is deliberate but debatable, and is flagged for
// product review rather than silently hardened to default-deny.
package certpin

import (
	"strings"
	"sync"
)

// Store maps a domain to its allowed certificate fingerprints.
type Store struct {
	mu   sync.RWMutex
	pins map[string]map[string]struct{}
}

// NewStore creates an empty pin store, optionally seeded from configuration.
func NewStore(seed map[string][]string) *Store {
	s := &Store{pins: make(map[string]map[string]struct{})}
	for domain, fingerprints := range seed {
		s.Pin(domain, fingerprints)
	}
	return s
}

// Pin replaces the fingerprint allow-list for a domain. An empty fingerprint
// list removes the entry, reverting the domain to trust-by-default.
func (s *Store) Pin(domain string, fingerprints []string) {
	domain = normalize(domain)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(fingerprints) == 0 {
		delete(s.pins, domain)
		return
	}
	set := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		set[normalize(fp)] = struct{}{}
	}
	s.pins[domain] = set
}

// Verify reports whether the fingerprint is trusted for the domain. Unpinned
// domains always verify true.
func (s *Store) Verify(domain, fingerprint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.pins[normalize(domain)]
	if !ok {
		return true
	}
	_, trusted := set[normalize(fingerprint)]
	return trusted
}

// Unpin removes a domain's entry, reporting whether one existed.
func (s *Store) Unpin(domain string) bool {
	domain = normalize(domain)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pins[domain]; !ok {
		return false
	}
	delete(s.pins, domain)
	return true
}

// Pins returns a copy of the pin table.
func (s *Store) Pins() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.pins))
	for domain, set := range s.pins {
		fps := make([]string, 0, len(set))
		for fp := range set {
			fps = append(fps, fp)
		}
		out[domain] = fps
	}
	return out
}

// Reset clears the pin table.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins = make(map[string]map[string]struct{})
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
