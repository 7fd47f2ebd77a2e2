package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("user-42", secret, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := GetUserIDFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestGetUserIDFromToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-42", []byte("right"), time.Minute)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(token, []byte("wrong"))
	assert.Error(t, err)
}

func TestGetUserIDFromToken_Expired(t *testing.T) {
	token, err := GenerateToken("user-42", []byte("s"), -time.Minute)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(token, []byte("s"))
	assert.Error(t, err)
}

func TestGetUserIDFromToken_Garbage(t *testing.T) {
	_, err := GetUserIDFromToken("not.a.token", []byte("s"))
	assert.Error(t, err)
}
