package sync

import (
	"errors"
	"log/slog"
	"net/http"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/handler/http/respond"
	"homeboard-sync/internal/usecase/backup"
	"homeboard-sync/internal/usecase/record"
)

// writeError writes the {"success": false, "error": ...} envelope.
func writeError(w http.ResponseWriter, code int, msg string) {
	respond.JSON(w, code, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// handleError maps service errors onto the status codes of the sync surface.
// Version conflicts carry the latest sanitized document under data so the
// client can rebase without a second round trip.
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if conflict, ok := record.AsConflict(err); ok {
		var latest *entity.SyncDocument
		if conflict.Latest != nil {
			latest = conflict.Latest
		}
		respond.JSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "version conflict",
			"data":    latest,
		})
		return
	}

	switch {
	case errors.Is(err, record.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
	case errors.Is(err, backup.ErrBackupNotFound):
		writeError(w, http.StatusNotFound, "backup not found")
	case errors.Is(err, backup.ErrActiveHistoryEntry):
		writeError(w, http.StatusBadRequest, "cannot delete the active history entry")
	case errors.Is(err, entity.ErrValidationFailed), errors.Is(err, entity.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed",
			slog.String("error", respond.SanitizeError(err)))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
