package middleware

import (
	"net/http"
	"strings"
)

// ClientIdentity carries the request attributes the lockout service keys on.
// EdgeIP is the connection-derived address and cannot be spoofed; ForwardedIP
// comes from forwarding headers and is only populated behind a trusted proxy;
// Fingerprint is a weak client signature assembled from stable headers.
type ClientIdentity struct {
	EdgeIP      string
	ForwardedIP string
	Fingerprint string
}

// fingerprintHeaders lists the headers folded into the client fingerprint,
// in a fixed order so the same client produces the same signature.
var fingerprintHeaders = []string{
	"User-Agent",
	"Accept-Language",
	"Accept-Encoding",
	"Sec-Ch-Ua",
	"Sec-Ch-Ua-Platform",
}

// ExtractClientIdentity resolves the identity attributes for a request.
//
// EdgeIP uses the trusted-proxy-aware extractor, so behind a trusted proxy it
// already reflects the forwarded client address. ForwardedIP is additionally
// populated from the raw X-Forwarded-For header when present, letting the
// lockout tiers distinguish "connection IP" from "claimed IP" trust levels.
func ExtractClientIdentity(r *http.Request, extractor IPExtractor) ClientIdentity {
	identity := ClientIdentity{
		Fingerprint: Fingerprint(r),
	}

	if extractor != nil {
		if ip, err := extractor.ExtractIP(r); err == nil {
			identity.EdgeIP = ip
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		identity.ForwardedIP = parseFirstIP(xff)
	}

	return identity
}

// Fingerprint assembles a weak client signature from stable request headers.
// It is not a security boundary; it only narrows the blast radius of shared
// IPs when the lockout service picks an identity tier. Returns "" when none
// of the contributing headers are present.
func Fingerprint(r *http.Request) string {
	parts := make([]string, 0, len(fingerprintHeaders))
	empty := true
	for _, name := range fingerprintHeaders {
		v := r.Header.Get(name)
		if v != "" {
			empty = false
		}
		parts = append(parts, v)
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "|")
}
