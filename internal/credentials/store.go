// Package credentials holds the session cookie and grant-backend token in memory.
package credentials

import (
	"sync"
	"time"

	"github.com/navid-fn/tradesniper/internal/models"
)

// Store is a concurrency-safe holder of the current Credential.
// Values are replaced by the control API or the browser relay and never written to disk.
type Store struct {
	mu        sync.RWMutex
	cred      models.Credential
	poesessid string
	cfClear   string
	updatedAt time.Time
}

// NewStore creates a store seeded with initial values (may be empty).
func NewStore(poesessid, cfClearance, authToken string) *Store {
	s := &Store{}
	s.poesessid = poesessid
	s.cfClear = cfClearance
	s.cred = models.Credential{
		SessionCookie:      models.BuildCookie(poesessid, cfClearance),
		AuthorizationToken: authToken,
	}
	if s.cred.HasSession() || s.cred.HasAuthorization() {
		s.updatedAt = time.Now()
	}
	return s
}

// Get returns a copy of the current credential.
func (s *Store) Get() models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Replace swaps the whole credential.
func (s *Store) Replace(c models.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = c
	s.poesessid, s.cfClear = "", ""
	s.updatedAt = time.Now()
}

// SetSession rebuilds the session cookie from its parts. An empty cf_clearance keeps the previous one.
func (s *Store) SetSession(poesessid, cfClearance string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.poesessid = poesessid
	if cfClearance != "" {
		s.cfClear = cfClearance
	}
	s.cred.SessionCookie = models.BuildCookie(s.poesessid, s.cfClear)
	s.updatedAt = time.Now()
}

// SetAuthorizationToken replaces only the grant-backend token.
func (s *Store) SetAuthorizationToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.AuthorizationToken = token
	s.updatedAt = time.Now()
}

// Status describes what is loaded without exposing secrets.
type Status struct {
	HasSession       bool      `json:"has_session"`
	HasAuthorization bool      `json:"has_authorization"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		HasSession:       s.cred.HasSession(),
		HasAuthorization: s.cred.HasAuthorization(),
		UpdatedAt:        s.updatedAt,
	}
}
