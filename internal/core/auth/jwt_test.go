package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTer() *JWTer {
	return &JWTer{
		Secret:   []byte("test-secret-test-secret-test-secret"),
		Issuer:   "shelf-taught-api",
		Audience: "shelf-taught-client",
		TTL:      time.Hour,
	}
}

func TestIssueAndParse(t *testing.T) {
	j := newJWTer()
	tok, err := j.Issue("u-1", "ada@example.com", "ADMIN")
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "ADMIN", c.Role)
	assert.Equal(t, "shelf-taught-api", c.Issuer)
}

func TestParseRejects(t *testing.T) {
	j := newJWTer()
	tok, err := j.Issue("u-1", "ada@example.com", "USER")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := newJWTer()
		other.Secret = []byte("another-secret-another-secret-xx")
		_, err := other.Parse(tok)
		assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
	})
	t.Run("wrong issuer", func(t *testing.T) {
		other := newJWTer()
		other.Issuer = "someone-else"
		_, err := other.Parse(tok)
		assert.True(t, errors.Is(err, jwt.ErrTokenInvalidIssuer))
	})
	t.Run("wrong audience", func(t *testing.T) {
		other := newJWTer()
		other.Audience = "mobile"
		_, err := other.Parse(tok)
		assert.True(t, errors.Is(err, jwt.ErrTokenInvalidAudience))
	})
	t.Run("expired", func(t *testing.T) {
		short := newJWTer()
		short.TTL = -time.Minute
		old, err := short.Issue("u-1", "ada@example.com", "USER")
		require.NoError(t, err)
		_, err = j.Parse(old)
		assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := j.Parse("not.a.token")
		assert.Error(t, err)
	})
	t.Run("none alg", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = j.Parse(s)
		assert.Error(t, err)
	})
}

func TestExtractBearer(t *testing.T) {
	tok, err := ExtractBearer("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = ExtractBearer("bearer   xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = ExtractBearer("")
	assert.ErrorIs(t, err, ErrMissingToken)

	for _, h := range []string{"Basic abc", "Bearer", "Bearer ", "abc.def.ghi", "Bearer a b"} {
		_, err = ExtractBearer(h)
		assert.ErrorIs(t, err, ErrMalformedToken, h)
	}
}
