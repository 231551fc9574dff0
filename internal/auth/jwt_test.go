package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestValidate_ReturnsSubject(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)

	token := signHS256(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()})
	uid, err := jv.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)
}

func TestValidate_RejectsBadTokens(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)

	_, err = jv.Validate("not-a-token")
	assert.Error(t, err)

	expired := signHS256(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err = jv.Validate(expired)
	assert.Error(t, err)

	noSub := signHS256(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	_, err = jv.Validate(noSub)
	assert.Error(t, err)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"})
	wrongKey, err := other.SignedString([]byte("different-secret"))
	require.NoError(t, err)
	_, err = jv.Validate(wrongKey)
	assert.Error(t, err)
}

func TestNewJWTValidator_Config(t *testing.T) {
	_, err := NewJWTValidator("", "HS256", "")
	assert.Error(t, err, "hs256 requires a secret")

	_, err = NewJWTValidator("", "none", "x")
	assert.Error(t, err, "unsupported alg rejected")
}
