package sync

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"homeboard-sync/internal/handler/http/auth"
	"homeboard-sync/internal/handler/http/middleware"
	"homeboard-sync/internal/handler/http/respond"
	"homeboard-sync/internal/observability/metrics"
	"homeboard-sync/internal/service/lockout"
	"homeboard-sync/internal/usecase/backup"
	"homeboard-sync/internal/usecase/record"
)

// Handler bundles the services behind the sync surface.
type Handler struct {
	Records  *record.Service
	Backups  *backup.Service
	Lockout  *lockout.Service
	Provider *auth.Provider
	Issuer   *auth.Issuer

	// Extractor resolves the connection-level client IP, honoring the
	// trusted-proxy configuration.
	Extractor middleware.IPExtractor

	Logger *slog.Logger
}

// NewHandler creates the sync surface handler.
func NewHandler(
	records *record.Service,
	backups *backup.Service,
	lock *lockout.Service,
	provider *auth.Provider,
	issuer *auth.Issuer,
	extractor middleware.IPExtractor,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = &middleware.RemoteAddrExtractor{}
	}
	return &Handler{
		Records:   records,
		Backups:   backups,
		Lockout:   lock,
		Provider:  provider,
		Issuer:    issuer,
		Extractor: extractor,
		Logger:    logger,
	}
}

// checkCredential runs a raw credential through the lockout service and
// writes the 401/429 response itself when the check fails. The boolean
// reports whether the caller may proceed as admin.
//
// Lock state is checked before the credential comparison, so a locked
// identity stays locked even when it presents the correct password.
func (h *Handler) checkCredential(w http.ResponseWriter, r *http.Request, credential string, forceClear bool) bool {
	clientID := middleware.ExtractClientIdentity(r, h.Extractor)
	id := lockout.DeriveIdentity(clientID.EdgeIP, clientID.ForwardedIP, clientID.Fingerprint)

	res := h.Lockout.CheckAndRecord(r.Context(), id, credential, h.Provider.Expected(), forceClear)
	switch res.Outcome {
	case lockout.Allowed:
		metrics.RecordAuthAttempt(id.Tier.String(), "allowed")
		return true

	case lockout.Locked:
		metrics.RecordAuthAttempt(id.Tier.String(), "locked")
		retryAfter := int(res.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respondLocked(w, res.LockedUntil, retryAfter)
		return false

	default:
		metrics.RecordAuthAttempt(id.Tier.String(), "wrong_password")
		respondUnauthorized(w, fmt.Sprintf("invalid credential, %d attempts remaining", res.Remaining))
		return false
	}
}

// authorize resolves the caller's role and checks it against the permission
// table for the request's method+action pair. Session tokens grant admin
// directly; raw credentials go through the lockout-gated comparison. It
// writes the error response on failure.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, forceClear bool) bool {
	caller := auth.ExtractCaller(r, h.Issuer)

	role := auth.RolePublic
	switch {
	case caller.IsAdmin():
		role = auth.RoleAdmin
	case caller.Credential != "":
		if !h.checkCredential(w, r, caller.Credential, forceClear) {
			return false
		}
		role = auth.RoleAdmin
	}

	if !auth.CheckPermission(role, r.Method, r.URL.Query().Get("action")) {
		respondUnauthorized(w, "credential required")
		return false
	}
	return true
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func respondLocked(w http.ResponseWriter, lockedUntil int64, retryAfterSeconds int) {
	// Body mirrors the Retry-After header so clients behind header-stripping
	// intermediaries still see the lock expiry.
	respond.JSON(w, http.StatusTooManyRequests, map[string]any{
		"success":           false,
		"error":             "too many failed attempts",
		"lockedUntil":       lockedUntil,
		"retryAfterSeconds": retryAfterSeconds,
	})
}
