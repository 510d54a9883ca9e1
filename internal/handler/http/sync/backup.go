package sync

import (
	"net/http"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/handler/http/respond"
	"homeboard-sync/internal/observability/metrics"
)

// handleBackupCreate 手動スナップショット作成
// @Summary      バックアップ作成
// @Description  現在のドキュメントの手動スナップショットを作成します（30日保持）
// @Tags         backup
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} map[string]any "スナップショットキー"
// @Failure      401 {string} string "認証失敗"
// @Failure      404 {string} string "ドキュメントが存在しない"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/sync?action=backup [post]
func (h *Handler) handleBackupCreate(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, false) {
		return
	}

	doc, _, err := h.Records.ReadCurrent(r.Context())
	if err != nil {
		metrics.RecordBackupOperation("snapshot", false)
		handleError(w, h.Logger, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "no document to back up")
		return
	}

	key, err := h.Backups.CreateSnapshot(r.Context(), doc)
	if err != nil {
		metrics.RecordBackupOperation("snapshot", false)
		handleError(w, h.Logger, err)
		return
	}

	metrics.RecordBackupOperation("snapshot", true)
	respond.Success(w, http.StatusOK, map[string]any{
		"key": key,
	})
}

// handleBackupGet バックアップ取得
// @Summary      バックアップ取得
// @Description  キーで指定されたバックアップの内容を返します
// @Tags         backup
// @Security     BearerAuth
// @Produce      json
// @Param        key query string true "バックアップキー"
// @Success      200 {object} map[string]any "バックアップ内容"
// @Failure      400 {string} string "キーが不正"
// @Failure      401 {string} string "認証失敗"
// @Failure      404 {string} string "バックアップが存在しない"
// @Router       /api/sync?action=backup [get]
func (h *Handler) handleBackupGet(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, false) {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	doc, err := h.Backups.Get(r.Context(), key)
	if err != nil {
		handleError(w, h.Logger, err)
		return
	}

	respond.Success(w, http.StatusOK, map[string]any{
		"key":  key,
		"data": entity.AdminView(doc),
	})
}

// handleBackupDelete バックアップ削除
// @Summary      バックアップ削除
// @Description  キーで指定されたバックアップを削除します。現在のドキュメントに対応する履歴エントリは削除できません
// @Tags         backup
// @Security     BearerAuth
// @Produce      json
// @Param        key query string true "バックアップキー"
// @Success      200 {object} map[string]any "削除完了"
// @Failure      400 {string} string "キーが不正、または削除が許可されていない"
// @Failure      401 {string} string "認証失敗"
// @Router       /api/sync?action=backup [delete]
func (h *Handler) handleBackupDelete(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, false) {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := h.Backups.Delete(r.Context(), key); err != nil {
		metrics.RecordBackupOperation("delete", false)
		handleError(w, h.Logger, err)
		return
	}

	metrics.RecordBackupOperation("delete", true)
	respond.Success(w, http.StatusOK, nil)
}
