package jwt

import (
	"testing"
	"time"

	"github.com/ignis-framework/ignis/ignis/authn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{Secret: "test-secret", Issuer: "ignis", AccessTokenExpireDuration: time.Hour}
}

func TestGenerateAndParseTokenRoundTrips(t *testing.T) {
	opts := testOptions()
	token, err := GenerateAccessToken(opts, "user-1", map[string]any{
		"userId": "user-1",
		"roles":  []Role{{ID: "r1", Identifier: "admin", Priority: 1}},
	})
	require.NoError(t, err)

	claims, custom, err := ParseToken(opts, token)
	require.NoError(t, err)
	assert.Equal(t, "ignis", claims.Issuer)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user-1", custom["userId"])

	role, err := ParseRole(custom["roles"])
	require.NoError(t, err)
	assert.Equal(t, "admin", role.Identifier)
}

func TestParseTokenRejectsWrongIssuer(t *testing.T) {
	opts := testOptions()
	token, err := GenerateAccessToken(opts, "user-1", nil)
	require.NoError(t, err)

	wrongIssuer := opts
	wrongIssuer.Issuer = "someone-else"
	_, _, err = ParseToken(wrongIssuer, token)
	require.Error(t, err)
}

func TestNilClaimValuesAreSkippedDuringEncryption(t *testing.T) {
	opts := testOptions()
	token, err := GenerateAccessToken(opts, "user-1", map[string]any{
		"userId":   "user-1",
		"deletedAt": nil,
	})
	require.NoError(t, err)

	_, custom, err := ParseToken(opts, token)
	require.NoError(t, err)
	_, present := custom["deletedAt"]
	assert.False(t, present)
}

type fakeRequest map[string]string

func (f fakeRequest) header(name string) string { return f[name] }

func TestStrategyAuthenticatesBearerToken(t *testing.T) {
	opts := testOptions()
	token, err := GenerateAccessToken(opts, "user-1", map[string]any{
		"userId": "user-1",
		"roles":  []Role{{ID: "r1", Identifier: "admin", Priority: 1}},
	})
	require.NoError(t, err)

	strategy := New(opts)
	headers := fakeRequest{"Authorization": "Bearer " + token}
	user, err := strategy.Authenticate(nil, authn.Request{Header: headers.header})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Contains(t, user.Roles, "admin")
}

func TestStrategyReturnsNilWithoutHeader(t *testing.T) {
	strategy := New(testOptions())
	user, err := strategy.Authenticate(nil, authn.Request{Header: func(string) string { return "" }})
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	opts := testOptions()
	token, err := GenerateAccessToken(opts, "user-1", map[string]any{"userId": "user-1"})
	require.NoError(t, err)

	claims, _, err := ParseToken(opts, token)
	require.NoError(t, err)

	strategy := New(opts)
	strategy.Revoke(claims.ID)

	headers := fakeRequest{"Authorization": "Bearer " + token}
	_, err = strategy.Authenticate(nil, authn.Request{Header: headers.header})
	require.Error(t, err)
}
