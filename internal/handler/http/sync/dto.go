// Package sync provides the HTTP surface of the synchronization engine.
// All operations are mounted on a single path and dispatched on the HTTP
// method plus an `action` query parameter.
package sync

import (
	"homeboard-sync/internal/domain/entity"
)

// writeRequest is the body of a document write. ExpectedVersion carries the
// optimistic-lock version the client observed; nil skips the version check.
type writeRequest struct {
	Document        *entity.SyncDocument `json:"document"`
	ExpectedVersion *int                 `json:"expectedVersion,omitempty"`
}

// loginRequest is the body of a credential check.
type loginRequest struct {
	Password string `json:"password" example:"your_password"`
}

// restoreRequest names the backup to restore and the device performing it.
type restoreRequest struct {
	Key      string `json:"key" example:"sync:backup:1735689600000"`
	DeviceID string `json:"deviceId,omitempty" example:"desktop-a1b2"`
}

// backupListItemDTO is one row of the history listing.
type backupListItemDTO struct {
	Key       string `json:"key" example:"sync:history:1735689600000-a1b2c3d4"`
	UpdatedAt int64  `json:"updatedAt" example:"1735689600000"`
	DeviceID  string `json:"deviceId,omitempty" example:"desktop-a1b2"`
	Browser   string `json:"browser,omitempty" example:"Firefox"`
	OS        string `json:"os,omitempty" example:"Linux"`
	Version   int    `json:"version" example:"42"`
	SyncKind  string `json:"syncKind,omitempty" example:"manual"`
	IsCurrent bool   `json:"isCurrent" example:"true"`
}

func toBackupListDTO(items []entity.BackupListItem) []backupListItemDTO {
	out := make([]backupListItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, backupListItemDTO{
			Key:       it.Key,
			UpdatedAt: it.UpdatedAt,
			DeviceID:  it.DeviceID,
			Browser:   it.Browser,
			OS:        it.OS,
			Version:   it.Version,
			SyncKind:  it.SyncKind,
			IsCurrent: it.IsCurrent,
		})
	}
	return out
}
