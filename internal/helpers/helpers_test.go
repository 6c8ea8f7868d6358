package helpers

import (
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("dashboard-test-secret")

func signedToken(t *testing.T, kid string, secret []byte, expires time.Time) string {
	t.Helper()
	claims := &CustomClaims{
		Email: "host@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "6c1f4f4e-2d0b-4a53-9a8f-2f1c7f0e5b11",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	claims.AppMetadata.Roles = []string{"admin"}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func testVerifier() *TokenVerifier {
	return NewStaticTokenVerifier(keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		"k1": keyfunc.NewGivenHMAC(testSecret, keyfunc.GivenKeyOptions{Algorithm: "HS256"}),
	}))
}

func TestTokenVerifierAcceptsSignedToken(t *testing.T) {
	v := testVerifier()
	defer v.Close()

	claims, err := v.Validate(signedToken(t, "k1", testSecret, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "host@example.com", claims.Email)
	assert.Equal(t, "6c1f4f4e-2d0b-4a53-9a8f-2f1c7f0e5b11", claims.Subject)

	hc := &HostClaims{CustomClaims: claims, UserID: claims.Subject}
	assert.True(t, hc.IsAdmin())
	assert.True(t, hc.CanManage("someone-else"))
}

func TestTokenVerifierRejects(t *testing.T) {
	v := testVerifier()

	_, err := v.Validate(signedToken(t, "k1", testSecret, time.Now().Add(-time.Minute)))
	assert.Error(t, err, "expired")

	_, err = v.Validate(signedToken(t, "k1", []byte("other"), time.Now().Add(time.Hour)))
	assert.Error(t, err, "wrong key")

	_, err = v.Validate(signedToken(t, "k2", testSecret, time.Now().Add(time.Hour)))
	assert.Error(t, err, "unknown kid")

	_, err = v.Validate("not-a-token")
	assert.Error(t, err)
}

func TestStringTrim(t *testing.T) {
	assert.Equal(t, "wedding-2026", StringTrim(`  "wedding-2026" `))
	assert.Equal(t, "g1", StringTrim("'g1'"))
}

func TestTokenExpiry(t *testing.T) {
	assert.True(t, (&HostClaims{}).TokenExpiry().IsZero())

	v := testVerifier()
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, err := v.Validate(signedToken(t, "k1", testSecret, expires))
	require.NoError(t, err)
	hc := &HostClaims{CustomClaims: claims, UserID: claims.Subject}
	assert.True(t, expires.Equal(hc.TokenExpiry()))
}
