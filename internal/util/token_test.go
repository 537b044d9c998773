package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envlocker/envlocker/dao/model"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := newTokenManager("access-secret", "refresh-secret", 1, 24)
	msg := JWTMessage{UserID: 42, Email: "user@test.dev", Role: model.RoleMember}

	access, refresh, err := tm.CreateTokens(&msg)
	require.NoError(t, err)
	require.NotEqual(t, access, refresh)

	got, err := tm.CheckAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	got, err = tm.CheckRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestTokenSecretsAreNotInterchangeable(t *testing.T) {
	tm := newTokenManager("access-secret", "refresh-secret", 1, 24)
	access, refresh, err := tm.CreateTokens(&JWTMessage{UserID: 1, Email: "u@test.dev", Role: model.RoleAdmin})
	require.NoError(t, err)

	_, err = tm.CheckAccessToken(refresh)
	assert.Error(t, err, "refresh token must not pass the access check")
	_, err = tm.CheckRefreshToken(access)
	assert.Error(t, err)

	other := newTokenManager("different", "refresh-secret", 1, 24)
	_, err = other.CheckAccessToken(access)
	assert.Error(t, err)
}
