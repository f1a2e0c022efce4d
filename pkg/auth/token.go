package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for token operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrMissingToken        = errors.New("missing token")
	ErrInvalidSecretLength = errors.New("token secret must be at least 32 characters")
)

// tokenParam is the query parameter carrying the signed token.
const tokenParam = "token"

// TokenConfig holds configuration for URL token signing.
type TokenConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "broadcastd".
	Issuer string

	// TokenTTL is the lifetime of a signed URL. Default: 1 hour.
	TokenTTL time.Duration
}

// TokenService is a SecurityContext that signs fetch URLs with HS256
// tokens carrying the request path as audience, so a token for one
// broadcast cannot be replayed against another.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a TokenService with the given configuration.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}

	if config.Issuer == "" {
		config.Issuer = "broadcastd"
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = time.Hour
	}

	return &TokenService{config: config}, nil
}

// Enabled always reports true.
func (s *TokenService) Enabled() bool { return true }

// SignURL appends a signed token to rawURL.
func (s *TokenService) SignURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Audience:  jwt.ClaimStrings{u.Path},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign url token: %w", err)
	}

	q := u.Query()
	q.Set(tokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify validates a token against the request path it must authorize.
func (s *TokenService) Verify(tokenString, path string) error {
	if tokenString == "" {
		return ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.config.Secret), nil
		},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(path),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

// Middleware verifies the token query parameter on every request.
func (s *TokenService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Verify(r.URL.Query().Get(tokenParam), r.URL.Path); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var _ SecurityContext = (*TokenService)(nil)
