package sync

import (
	"encoding/json"
	"net/http"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/handler/http/respond"
	"homeboard-sync/internal/observability/metrics"
	"homeboard-sync/internal/usecase/record"
)

// handleWrite ドキュメント書き込み
// @Summary      同期ドキュメント書き込み
// @Description  ドキュメントを書き込みます。expectedVersion を指定すると楽観ロックが有効になり、版の不一致は 409 で最新の内容を返します
// @Tags         sync
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body writeRequest true "ドキュメントと期待バージョン"
// @Success      200 {object} map[string]any "採番済みドキュメント"
// @Failure      400 {string} string "バリデーションエラー"
// @Failure      401 {string} string "認証失敗"
// @Failure      409 {object} map[string]any "バージョン競合（最新ドキュメントを含む）"
// @Failure      413 {string} string "ペイロードが大きすぎる"
// @Failure      429 {string} string "ロックアウト中"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/sync [post]
func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, false) {
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Document == nil {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}

	stamped, err := h.Records.Write(r.Context(), record.WriteInput{
		Document:        req.Document,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		if _, ok := record.AsConflict(err); ok {
			metrics.RecordSyncWrite("conflict")
		} else {
			metrics.RecordSyncWrite("rejected")
		}
		handleError(w, h.Logger, err)
		return
	}

	metrics.RecordSyncWrite("accepted")
	metrics.SetDocumentVersion(stamped.Meta.Version)

	// Auto-kind writes only produce a history entry when the ring policy
	// allows it; the write itself never fails on history bookkeeping.
	if _, err := h.Backups.CreateHistoryEntry(r.Context(), stamped, stamped.Meta.SyncKind, false); err != nil {
		h.Logger.Warn("history entry creation failed", "error", err)
	}

	respond.Success(w, http.StatusOK, map[string]any{
		"data": entity.AdminView(stamped),
	})
}
