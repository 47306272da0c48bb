package config

import (
	"fmt"
	"os"

	gokeyring "github.com/zalando/go-keyring"
)

const (
	keyringService = "app.council.council-cli"
	tokenEnvVar    = "COUNCIL_TOKEN"
)

func (c *Config) keyringKey() string {
	return "token_" + ProfileName(c.Profile)
}

// BearerToken resolves the credential for this profile. Precedence:
// COUNCIL_TOKEN env var, then the OS keyring, then the plaintext config
// fallback. Returns "" when not authenticated.
func (c *Config) BearerToken() string {
	if tok := os.Getenv(tokenEnvVar); tok != "" {
		return tok
	}
	if tok, err := gokeyring.Get(keyringService, c.keyringKey()); err == nil && tok != "" {
		return tok
	}
	return c.Token
}

// StoreToken saves the credential, preferring the OS keyring. When the
// keyring is unavailable (headless hosts, missing dbus) it falls back to
// the config file; the caller must Save afterwards either way.
func (c *Config) StoreToken(token string) error {
	if err := gokeyring.Set(keyringService, c.keyringKey(), token); err != nil {
		c.Token = token
		return nil
	}
	// Drop any stale plaintext copy once the keyring holds the token.
	c.Token = ""
	return nil
}

// ForgetToken removes the credential everywhere. Used on logout and on
// session invalidation (401).
func (c *Config) ForgetToken() error {
	c.Token = ""
	if err := gokeyring.Delete(keyringService, c.keyringKey()); err != nil && err != gokeyring.ErrNotFound {
		return fmt.Errorf("removing token from keyring: %w", err)
	}
	return nil
}
