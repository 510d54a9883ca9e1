package entity

// HistoryIndexEntry is one denormalized listing entry: the backend key of a
// history snapshot plus the meta it was written with, so listing does not
// have to fetch every snapshot body.
type HistoryIndexEntry struct {
	Key  string   `json:"key"`
	Meta SyncMeta `json:"meta"`
}

// HistoryIndex is the cached, time-sorted projection of history snapshot
// keys. It is never authoritative: it can always be rebuilt from a full
// backend listing.
type HistoryIndex struct {
	Version int                 `json:"version"`
	Items   []HistoryIndexEntry `json:"items"`
	Sources []string            `json:"sources,omitempty"`
}

// BackupListItem is one row of the backup listing returned to clients.
type BackupListItem struct {
	Key       string `json:"key"`
	UpdatedAt int64  `json:"updatedAt"`
	DeviceID  string `json:"deviceId"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	Version   int    `json:"version"`
	SyncKind  string `json:"syncKind"`
	IsCurrent bool   `json:"isCurrent"`
}
