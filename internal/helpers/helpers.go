package helpers

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrTextEmpty   = errors.New("required")
	ErrTextTooLong = errors.New("too long")
)

type CustomClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider  string   `json:"provider"`
		Providers []string `json:"providers"`
		Roles     []string `json:"roles,omitempty"`
	} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// TokenVerifier validates host access tokens against the project's JWKS. The
// key set is fetched on first use and refreshed in the background.
type TokenVerifier struct {
	jwksURL string
	logger  *slog.Logger

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

func NewTokenVerifier(supabaseURL string, logger *slog.Logger) *TokenVerifier {
	return &TokenVerifier{
		jwksURL: fmt.Sprintf("%s/auth/v1/.well-known/jwks.json", strings.TrimRight(supabaseURL, "/")),
		logger:  logger,
	}
}

// NewStaticTokenVerifier verifies against a fixed key set.
func NewStaticTokenVerifier(jwks *keyfunc.JWKS) *TokenVerifier {
	return &TokenVerifier{jwks: jwks}
}

func (v *TokenVerifier) keys() (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		return v.jwks, nil
	}

	jwks, err := keyfunc.Get(v.jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			v.logger.Warn("JWKS refresh failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}
	v.jwks = jwks
	return jwks, nil
}

func (v *TokenVerifier) Validate(tokenStr string) (*CustomClaims, error) {
	jwks, err := v.keys()
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}

// Close stops the background refresh.
func (v *TokenVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func StringTrim(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, "\"'")
}

// Templates render guest text inside third-party documents, so markup is
// never stored.
var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup and surrounding whitespace. The policy escapes
// what it keeps, so entities are decoded back to the plain text the guest typed.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// CheckText sanitises s and rejects it when the result is empty or longer
// than max runes. A max of zero disables the length check.
func CheckText(s string, max int) (string, error) {
	clean := SanitizeText(s)
	if clean == "" {
		return "", ErrTextEmpty
	}
	if max > 0 && utf8.RuneCountInString(clean) > max {
		return "", fmt.Errorf("%w: at most %d characters", ErrTextTooLong, max)
	}
	return clean, nil
}
