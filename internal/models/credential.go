package models

import "strings"

// Credential is the session material used for trade-site and grant-backend calls.
// It is replaced wholesale and never persisted.
type Credential struct {
	// SessionCookie is the full Cookie header value sent to the trade site.
	SessionCookie string `json:"-"`

	// AuthorizationToken is the bearer token for the grant backend.
	AuthorizationToken string `json:"-"`
}

// HasSession reports whether a session cookie is available.
func (c Credential) HasSession() bool {
	return strings.TrimSpace(c.SessionCookie) != ""
}

// HasAuthorization reports whether a grant-backend token is available.
func (c Credential) HasAuthorization() bool {
	return strings.TrimSpace(c.AuthorizationToken) != ""
}

// BuildCookie renders the trade-site Cookie header. Empty parts are omitted.
func BuildCookie(poesessid, cfClearance string) string {
	parts := make([]string, 0, 2)
	if poesessid != "" {
		parts = append(parts, "POESESSID="+poesessid)
	}
	if cfClearance != "" {
		parts = append(parts, "cf_clearance="+cfClearance)
	}
	return strings.Join(parts, "; ")
}
