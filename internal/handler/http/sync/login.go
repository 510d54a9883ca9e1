package sync

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"homeboard-sync/internal/handler/http/auth"
	"homeboard-sync/internal/handler/http/requestid"
	"homeboard-sync/internal/handler/http/respond"
)

// handleLogin 認証とセッショントークン発行
// @Summary      ログイン
// @Description  パスワードを検証し、セッショントークンを発行します。失敗はレート制限の対象です
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body loginRequest true "ログイン情報"
// @Success      200 {object} map[string]any "セッショントークン"
// @Failure      400 {string} string "リクエストが不正"
// @Failure      401 {string} string "認証失敗"
// @Failure      429 {string} string "ロックアウト中" headers(Retry-After=integer)
// @Failure      500 {string} string "トークン生成失敗"
// @Router       /api/sync?action=login [post]
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := h.Logger.With(slog.String("request_id", requestid.FromContext(r.Context())))

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	credential := req.Password
	if credential == "" {
		// Fall back to the Authorization header for clients that send the
		// credential the same way as every other request.
		credential = auth.ExtractCaller(r, h.Issuer).Credential
	}
	if credential == "" {
		respondUnauthorized(w, "credential required")
		return
	}

	// Login force-clears the failure counter on success.
	if !h.checkCredential(w, r, credential, true) {
		logger.Warn("login failed",
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return
	}

	token, err := h.Issuer.Issue(auth.RoleAdmin)
	if err != nil {
		logger.Error("token generation failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info("login successful",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	respond.Success(w, http.StatusOK, map[string]any{
		"token": token,
		"role":  auth.RoleAdmin,
	})
}
