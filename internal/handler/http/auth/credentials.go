package auth

import (
	"net/http"
	"strings"
)

// Caller describes the resolved identity of an incoming request.
type Caller struct {
	// Role is RoleAdmin or RolePublic. Anonymous callers resolve to RolePublic.
	Role string

	// Credential holds the raw credential when the caller sent a password
	// instead of a session token. Raw credentials must be checked through
	// the lockout service before the caller is granted RoleAdmin.
	Credential string

	// FromToken is true when the role came from a validated session token.
	FromToken bool
}

// IsAdmin reports whether the caller has already been granted the admin role.
// Callers presenting a raw credential are not admin until the lockout service
// accepts the credential.
func (c Caller) IsAdmin() bool {
	return c.FromToken && c.Role == RoleAdmin
}

// ExtractCaller resolves the caller from the Authorization header.
//
// The header carries either a session token from a previous login or the raw
// shared credential. Token validation is attempted first; values that do not
// parse as a token are treated as a raw credential and deferred to the
// lockout-gated comparison. Requests without an Authorization header resolve
// to an anonymous public caller.
func ExtractCaller(r *http.Request, issuer *Issuer) Caller {
	const prefix = "Bearer "

	authz := r.Header.Get("Authorization")
	if authz == "" {
		return Caller{Role: RolePublic}
	}

	value := authz
	if strings.HasPrefix(authz, prefix) {
		value = strings.TrimPrefix(authz, prefix)
	}
	if value == "" {
		return Caller{Role: RolePublic}
	}

	if issuer != nil {
		if role, err := issuer.Validate(value); err == nil {
			return Caller{Role: role, FromToken: true}
		}
	}

	return Caller{Role: RolePublic, Credential: value}
}
