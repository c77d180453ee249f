package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyPair(t *testing.T) {
	svc := NewTokenService("secret", time.Minute, time.Hour)

	access, refresh, err := svc.IssuePair(42)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	userID, err := svc.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)

	userID, err = svc.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
}

func TestVerifyRejectsSwappedUse(t *testing.T) {
	svc := NewTokenService("secret", time.Minute, time.Hour)

	access, refresh, err := svc.IssuePair(42)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(refresh)
	assert.Error(t, err)
	_, err = svc.VerifyRefresh(access)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Minute, time.Hour)
	verifier := NewTokenService("secret-b", time.Minute, time.Hour)

	access, _, err := issuer.IssuePair(42)
	require.NoError(t, err)

	_, err = verifier.VerifyAccess(access)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewTokenService("secret", -time.Minute, time.Hour)

	access, _, err := svc.IssuePair(42)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(access)
	assert.Error(t, err)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
