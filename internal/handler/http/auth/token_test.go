package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-with-at-least-32-characters")

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	token, err := issuer.Issue(RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	role, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if role != RoleAdmin {
		t.Fatalf("role=%q, want %q", role, RoleAdmin)
	}
}

func TestIssuer_RejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer(testSecret, -time.Minute)

	token, err := issuer.Issue(RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Validate(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestIssuer_RejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	other := NewIssuer([]byte("another-secret-key-also-32-chars-long!!"), time.Hour)

	token, _ := issuer.Issue(RoleAdmin)
	if _, err := other.Validate(token); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}

func TestIssuer_RejectsUnsignedAlgorithm(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	// alg=none must never validate.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "sync",
		"role": RoleAdmin,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, err := issuer.Validate(raw); err == nil {
		t.Fatal("alg=none token accepted")
	}
}

func TestIssuer_RejectsGarbage(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Validate(tok); err == nil {
			t.Fatalf("Validate(%q) accepted", tok)
		}
	}
}

func TestNewIssuerFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := NewIssuerFromEnv(time.Hour); err == nil {
		t.Fatal("empty JWT_SECRET accepted")
	}

	t.Setenv("JWT_SECRET", string(testSecret))
	if _, err := NewIssuerFromEnv(time.Hour); err != nil {
		t.Fatalf("NewIssuerFromEnv: %v", err)
	}
}
