package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
)

const hostID = "5f0c6d1e-0000-4000-8000-000000000001"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRefresher struct {
	calls int
	res   *types.TokenResponse
	err   error
}

func (f *fakeRefresher) RefreshToken(string) (*types.TokenResponse, error) {
	f.calls++
	return f.res, f.err
}

// validTokens accepts exactly the listed tokens.
func validTokens(tokens ...string) TokenValidator {
	return func(token string) (*helpers.CustomClaims, error) {
		for _, t := range tokens {
			if t == token {
				return &helpers.CustomClaims{
					Email:            "host@example.com",
					RegisteredClaims: jwt.RegisteredClaims{Subject: hostID},
				}, nil
			}
		}
		return nil, errors.New("token validation failed")
	}
}

func authEngine(refresher TokenRefresher, validate TokenValidator) (*gin.Engine, *[]*helpers.HostClaims) {
	var seen []*helpers.HostClaims
	r := gin.New()
	r.Use(AuthMiddleware(refresher, validate, false, discard))
	r.GET("/me", func(c *gin.Context) {
		claims, ok := Host(c)
		if ok {
			seen = append(seen, claims)
		}
		c.Status(http.StatusNoContent)
	})
	return r, &seen
}

func TestAuthMiddlewareBearerHeader(t *testing.T) {
	r, seen := authEngine(nil, validTokens("good"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, *seen, 1)
	assert.Equal(t, hostID, (*seen)[0].UserID)
	assert.Equal(t, "good", (*seen)[0].AccessToken)
	assert.Equal(t, "host@example.com", (*seen)[0].Email)
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	r, seen := authEngine(nil, validTokens("good"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, *seen)
}

func TestAuthMiddlewareRefreshesExpiredCookie(t *testing.T) {
	refresher := &fakeRefresher{res: &types.TokenResponse{}}
	refresher.res.AccessToken = "fresh"
	refresher.res.RefreshToken = "next-refresh"
	refresher.res.ExpiresIn = 3600
	r, seen := authEngine(refresher, validTokens("fresh"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "stale"})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, refresher.calls)
	require.Len(t, *seen, 1)
	assert.Equal(t, "fresh", (*seen)[0].AccessToken)

	cookies := map[string]string{}
	for _, ck := range w.Result().Cookies() {
		cookies[ck.Name] = ck.Value
	}
	assert.Equal(t, "fresh", cookies["access_token"])
	assert.Equal(t, "next-refresh", cookies["refresh_token"])
}

func TestAuthMiddlewareRefreshFailure(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("invalid grant")}
	r, seen := authEngine(refresher, validTokens("fresh"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "stale"})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, *seen)
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), StructuredLogger(discard))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestErrorHandlerHidesDetails(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(discard))
	r.GET("/", func(c *gin.Context) { _ = c.Error(errors.New("pq: relation missing")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
}
