package sync

import (
	"net/http"

	"homeboard-sync/internal/handler/http/auth"
	"homeboard-sync/internal/handler/http/respond"
)

// handleAuthStatus 認証状態の確認
// @Summary      認証状態取得
// @Description  呼び出し元のロールと許可された操作を返します。正しい認証情報の提示で失敗カウンタを強制クリアします
// @Tags         sync
// @Produce      json
// @Success      200 {object} map[string]any "ロールと権限"
// @Failure      401 {string} string "認証失敗"
// @Failure      429 {string} string "ロックアウト中"
// @Router       /api/sync?action=auth [get]
func (h *Handler) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	caller := auth.ExtractCaller(r, h.Issuer)

	role := auth.RolePublic
	switch {
	case caller.IsAdmin():
		role = auth.RoleAdmin
	case caller.Credential != "":
		// Auth-status is one of the two endpoints that force-clear the
		// failure counter on success, so a user who finally remembered
		// the password starts from a clean slate.
		if !h.checkCredential(w, r, caller.Credential, true) {
			return
		}
		role = auth.RoleAdmin
	}

	respond.Success(w, http.StatusOK, map[string]any{
		"role":        role,
		"permissions": auth.Permissions(role),
	})
}
