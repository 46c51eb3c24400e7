package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(12, "accountant", "biz-9")
	require.NoError(t, err)

	parsed, err := JwtValidate(token)
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claim, ok := parsed.Claims.(*JwtCustomClaim)
	require.True(t, ok)
	assert.Equal(t, 12, claim.ID)
	assert.Equal(t, "accountant", claim.Role)
	assert.Equal(t, "biz-9", claim.BusinessId)
	assert.Greater(t, claim.ExpiresAt, claim.IssuedAt)
}

func TestJwtValidate_RejectsTampered(t *testing.T) {
	token, err := JwtGenerate(1, "admin", "biz-1")
	require.NoError(t, err)

	_, err = JwtValidate(token + "x")
	assert.Error(t, err)
}
