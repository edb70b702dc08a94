package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTRoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "budmart", "budmart", time.Hour)

	token, err := a.GenerateToken("admin")
	require.NoError(t, err)
	assert.Greater(t, len(token), 10)

	parsed, err := a.ValidateToken(token)
	require.NoError(t, err)
	sub, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)
}

func TestJWTRejectsForeignAndExpired(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "budmart", "budmart", time.Hour)
	other := NewJWTAuthenticator("different", "budmart", "budmart", time.Hour)

	token, err := other.GenerateToken("admin")
	require.NoError(t, err)
	_, err = a.ValidateToken(token)
	assert.Error(t, err)

	expired := NewJWTAuthenticator("s3cret", "budmart", "budmart", -time.Minute)
	token, err = expired.GenerateToken("admin")
	require.NoError(t, err)
	_, err = a.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = a.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestAdminCredentials(t *testing.T) {
	plain := AdminCredentials{Username: "admin", Password: "pa55"}
	assert.True(t, plain.Check("admin", "pa55"))
	assert.False(t, plain.Check("admin", "nope"))
	assert.False(t, plain.Check("root", "pa55"))
	assert.True(t, plain.CheckPassword("pa55"))
	assert.False(t, plain.CheckPassword(""))

	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := AdminCredentials{Username: "admin", Password: "pa55", PasswordHash: string(hash)}
	assert.True(t, hashed.Check("admin", "hashed"))
	assert.False(t, hashed.Check("admin", "pa55"))

	assert.False(t, AdminCredentials{}.Check("", ""))
}
