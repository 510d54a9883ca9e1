package sync

import (
	"net/http"

	"homeboard-sync/internal/handler/http/respond"
)

// handleBackupList 履歴一覧取得
// @Summary      バックアップ履歴一覧
// @Description  履歴エントリの一覧を新しい順に返します。インデックスキャッシュが欠損している場合は再構築されます
// @Tags         backup
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} map[string]any "履歴一覧"
// @Failure      401 {string} string "認証失敗"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/sync?action=backups [get]
func (h *Handler) handleBackupList(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, false) {
		return
	}

	items, err := h.Backups.List(r.Context())
	if err != nil {
		handleError(w, h.Logger, err)
		return
	}

	respond.Success(w, http.StatusOK, map[string]any{
		"backups": toBackupListDTO(items),
	})
}
