package sync

import (
	"net/http"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/handler/http/auth"
	"homeboard-sync/internal/handler/http/respond"
)

// handleRead 現在のドキュメント取得
// @Summary      同期ドキュメント取得
// @Description  現在のメインドキュメントを返します。管理者には完全な内容、それ以外には公開用に秘匿フィールドを除いた内容を返します
// @Tags         sync
// @Produce      json
// @Success      200 {object} map[string]any "ドキュメント（空ストアでは data: null）"
// @Failure      401 {string} string "認証失敗"
// @Failure      429 {string} string "ロックアウト中"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/sync [get]
func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	caller := auth.ExtractCaller(r, h.Issuer)

	admin := caller.IsAdmin()
	if !admin && caller.Credential != "" {
		// A wrong or locked credential fails the request instead of silently
		// degrading to the public view.
		if !h.checkCredential(w, r, caller.Credential, false) {
			return
		}
		admin = true
	}

	doc, _, err := h.Records.ReadCurrent(r.Context())
	if err != nil {
		handleError(w, h.Logger, err)
		return
	}

	var view *entity.SyncDocument
	if doc != nil {
		if admin {
			view = entity.AdminView(doc)
		} else {
			view = entity.PublicView(doc)
		}
	}

	respond.Success(w, http.StatusOK, map[string]any{
		"data": view,
	})
}
