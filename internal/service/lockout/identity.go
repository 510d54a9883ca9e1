package lockout

import (
	"crypto/sha256"
	"encoding/hex"
)

// Tier classifies how much the derived client identity can be trusted.
// Less attributable identities get stricter failure thresholds, so an
// attacker who strips identifying signals buys fewer attempts, not more.
type Tier int

const (
	// TierEdgeIP: a trusted edge-supplied client IP.
	TierEdgeIP Tier = iota
	// TierForwardedIP: a proxy-supplied forwarded IP combined with the
	// request fingerprint.
	TierForwardedIP
	// TierFingerprint: no usable IP, but a non-empty request fingerprint.
	TierFingerprint
	// TierAnonymous: no IP and no fingerprint at all.
	TierAnonymous
)

// Threshold returns the failed-attempt count at which the tier locks out.
func (t Tier) Threshold() int {
	switch t {
	case TierEdgeIP:
		return 5
	case TierForwardedIP, TierFingerprint:
		return 3
	default:
		return 2
	}
}

// String returns the tier name used in logs and alerts.
func (t Tier) String() string {
	switch t {
	case TierEdgeIP:
		return "edge_ip"
	case TierForwardedIP:
		return "forwarded_ip"
	case TierFingerprint:
		return "fingerprint"
	default:
		return "anonymous"
	}
}

// maxSeedLength caps the identity seed before hashing so oversized headers
// cannot inflate the hash input.
const maxSeedLength = 256

// attemptKeyPrefix namespaces attempt records in the backend.
const attemptKeyPrefix = "auth:attempt:"

// Identity is a derived client identity: the hashed storage key plus the
// trust tier that determines its failure threshold.
type Identity struct {
	Key  string
	Tier Tier
}

// DeriveIdentity builds the client identity from the available signals,
// most to least trusted: edge IP, forwarded IP plus fingerprint, fingerprint
// alone, then nothing.
func DeriveIdentity(edgeIP, forwardedIP, fingerprint string) Identity {
	switch {
	case edgeIP != "":
		return Identity{Key: attemptKey("ip:" + edgeIP), Tier: TierEdgeIP}
	case forwardedIP != "":
		return Identity{Key: attemptKey("fwd:" + forwardedIP + "|" + fingerprint), Tier: TierForwardedIP}
	case fingerprint != "":
		return Identity{Key: attemptKey("fp:" + fingerprint), Tier: TierFingerprint}
	default:
		return Identity{Key: attemptKey("anon"), Tier: TierAnonymous}
	}
}

// attemptKey length-caps and hashes the seed before it becomes a storage key.
func attemptKey(seed string) string {
	if len(seed) > maxSeedLength {
		seed = seed[:maxSeedLength]
	}
	sum := sha256.Sum256([]byte(seed))
	return attemptKeyPrefix + hex.EncodeToString(sum[:])
}
