// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

// DefaultCookieName is the session cookie name used when none is configured.
const DefaultCookieName = "gatehouse_session"

// CookieAttributes describe how a session cookie is to be written.
// Persistent cookies carry no explicit expiry at this layer; the transport
// maps "persistent" to its own max-age convention and a cleared cookie to an
// immediate delete.
type CookieAttributes struct {
	Secure     bool
	HTTPOnly   bool
	Path       string
	Persistent bool
}

// SessionCookie is a cookie-write instruction. It is computed fresh on each
// create, refresh, or destroy and never persisted; Value holds the plaintext
// session token, or "" for a cleared cookie.
type SessionCookie struct {
	Name       string
	Value      string
	Attributes CookieAttributes
}

// IsCleared reports whether this instruction removes the client's cookie.
func (c SessionCookie) IsCleared() bool {
	return c.Value == ""
}

// newSessionCookie builds the cookie for a live session token.
func newSessionCookie(name, token string, secure bool) SessionCookie {
	return SessionCookie{
		Name:  name,
		Value: token,
		Attributes: CookieAttributes{
			Secure:     secure,
			HTTPOnly:   true,
			Path:       "/",
			Persistent: true,
		},
	}
}

// ClearedSessionCookie builds the marker cookie that makes a client drop its
// stale token.
func ClearedSessionCookie(name string, secure bool) SessionCookie {
	return SessionCookie{
		Name:  name,
		Value: "",
		Attributes: CookieAttributes{
			Secure:   secure,
			HTTPOnly: true,
			Path:     "/",
		},
	}
}

// CookieSink is the transport-side cookie capability consumed by this
// package. Implementations are request-scoped; this package never retains
// one across requests.
type CookieSink interface {
	// Set writes or clears a cookie on the outgoing response.
	Set(cookie SessionCookie) error

	// Get reads a cookie value from the incoming request.
	Get(name string) (value string, ok bool)
}
