// Package auth implements the security context for the broadcast fetch
// path: the origin signs fetch URLs with a short-lived HMAC token and the
// transport endpoint verifies the token before serving file bytes.
package auth

import (
	"net/http"
)

// SecurityContext decides whether fetch URLs are authenticated and, when
// they are, signs and verifies them.
type SecurityContext interface {
	// Enabled reports whether URL authentication is active.
	Enabled() bool

	// SignURL returns an authenticated form of rawURL. When authentication
	// is disabled the URL is returned unmodified.
	SignURL(rawURL string) (string, error)

	// Middleware wraps an HTTP handler with token verification. When
	// authentication is disabled the handler is returned unmodified.
	Middleware(next http.Handler) http.Handler
}

// Disabled is a SecurityContext with authentication turned off.
type Disabled struct{}

// Enabled always reports false.
func (Disabled) Enabled() bool { return false }

// SignURL returns rawURL unmodified.
func (Disabled) SignURL(rawURL string) (string, error) { return rawURL, nil }

// Middleware returns next unmodified.
func (Disabled) Middleware(next http.Handler) http.Handler { return next }

var _ SecurityContext = Disabled{}
