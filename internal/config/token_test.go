package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestBearerTokenPrecedence(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv(tokenEnvVar, "")

	cfg := &Config{Token: "plaintext-tok"}
	assert.Equal(t, "plaintext-tok", cfg.Token, "plaintext fallback")
	assert.Equal(t, "plaintext-tok", cfg.BearerToken())

	require.NoError(t, gokeyring.Set(keyringService, cfg.keyringKey(), "keyring-tok"))
	assert.Equal(t, "keyring-tok", cfg.BearerToken(), "keyring beats plaintext")

	t.Setenv(tokenEnvVar, "env-tok")
	assert.Equal(t, "env-tok", cfg.BearerToken(), "env var beats everything")
}

func TestStoreTokenPrefersKeyring(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv(tokenEnvVar, "")

	cfg := &Config{Token: "stale-plaintext"}
	require.NoError(t, cfg.StoreToken("fresh-tok"))

	assert.Equal(t, "", cfg.Token, "plaintext copy cleared once the keyring holds the token")
	assert.Equal(t, "fresh-tok", cfg.BearerToken())
}

func TestStoreTokenFallsBackToPlaintext(t *testing.T) {
	gokeyring.MockInitWithError(errors.New("no dbus"))
	t.Setenv(tokenEnvVar, "")

	cfg := &Config{}
	require.NoError(t, cfg.StoreToken("tok"))

	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "tok", cfg.BearerToken())
}

func TestForgetToken(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv(tokenEnvVar, "")

	cfg := &Config{}
	require.NoError(t, cfg.StoreToken("tok"))
	require.NoError(t, cfg.ForgetToken())

	assert.Equal(t, "", cfg.BearerToken())

	// Forgetting an already-absent token is not an error.
	require.NoError(t, cfg.ForgetToken())
}

func TestTokensAreScopedByProfile(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv(tokenEnvVar, "")

	def := &Config{}
	work := &Config{Profile: "work"}
	require.NoError(t, def.StoreToken("default-tok"))
	require.NoError(t, work.StoreToken("work-tok"))

	assert.Equal(t, "default-tok", def.BearerToken())
	assert.Equal(t, "work-tok", work.BearerToken())
}
