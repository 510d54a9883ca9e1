package sync

import (
	"encoding/json"
	"net/http"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/handler/http/respond"
	"homeboard-sync/internal/observability/metrics"
)

// handleRestore バックアップからの復元
// @Summary      バックアップ復元
// @Description  指定されたバックアップでメインドキュメントを置き換えます。復元前の内容はロールバック用スナップショットとして保存されます
// @Tags         backup
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body restoreRequest true "復元対象キー"
// @Success      200 {object} map[string]any "復元後のドキュメントとロールバックキー"
// @Failure      400 {string} string "キーが不正"
// @Failure      401 {string} string "認証失敗"
// @Failure      404 {string} string "バックアップが存在しない"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/sync?action=restore [post]
func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, false) {
		return
	}

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	result, err := h.Backups.Restore(r.Context(), req.Key, req.DeviceID)
	if err != nil {
		metrics.RecordBackupOperation("restore", false)
		handleError(w, h.Logger, err)
		return
	}

	metrics.RecordBackupOperation("restore", true)
	metrics.SetDocumentVersion(result.Document.Meta.Version)

	respond.Success(w, http.StatusOK, map[string]any{
		"data":        entity.AdminView(result.Document),
		"rollbackKey": result.RollbackKey,
	})
}
