// Package auth implements credential verification, session tokens, and
// role-based permissions for the sync surface.
package auth

import (
	"fmt"
	"os"
)

// Provider validates the single shared admin credential.
// The credential is configured via the ADMIN_PASSWORD environment variable.
type Provider struct {
	password string
}

// NewProvider creates a provider with an explicit credential. Used in tests.
func NewProvider(password string) *Provider {
	return &Provider{password: password}
}

// NewProviderFromEnv creates a provider from the ADMIN_PASSWORD environment
// variable. It returns an error when the credential is unset so that a
// misconfigured deployment fails at startup instead of rejecting every caller.
func NewProviderFromEnv() (*Provider, error) {
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD must not be empty")
	}
	return &Provider{password: password}, nil
}

// Expected returns the configured credential. The lockout service owns the
// constant-time comparison, so the provider only hands over the expected
// value instead of exposing a second comparison entry point.
func (p *Provider) Expected() string {
	return p.password
}
