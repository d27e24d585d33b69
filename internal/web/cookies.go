// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package web exposes the authentication service over HTTP.
package web

import (
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// persistentCookieMaxAge is used for persistent session cookies. The browser
// keeps the cookie across restarts; the server-side expiry is authoritative.
const persistentCookieMaxAge = int(400 * 24 * time.Hour / time.Second)

// cookieSink adapts an HTTP request/response pair to auth.CookieSink.
// Writes become Set-Cookie headers; reads come from the request.
type cookieSink struct {
	w http.ResponseWriter
	r *http.Request
}

func newCookieSink(w http.ResponseWriter, r *http.Request) *cookieSink {
	return &cookieSink{w: w, r: r}
}

// Set writes the session cookie to the response. A cleared cookie is sent
// with MaxAge -1 so the browser drops it immediately.
func (s *cookieSink) Set(cookie auth.SessionCookie) error {
	c := &http.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Attributes.Path,
		HttpOnly: cookie.Attributes.HTTPOnly,
		Secure:   cookie.Attributes.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cookie.IsCleared() {
		c.MaxAge = -1
	} else if cookie.Attributes.Persistent {
		c.MaxAge = persistentCookieMaxAge
	}
	http.SetCookie(s.w, c)
	return nil
}

// Get reads a cookie value from the request.
func (s *cookieSink) Get(name string) (string, bool) {
	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Compile-time interface check.
var _ auth.CookieSink = (*cookieSink)(nil)
