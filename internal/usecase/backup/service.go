package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/repository"
	"homeboard-sync/internal/usecase/record"
)

// Service manages the backup lifecycle: manual snapshots, the ring-bounded
// history log, restore with rollback points, and deletion policy. Snapshots
// and history entries live in the blob store regardless of where the main
// document lives, so everything here is subject to the blob size ceiling.
type Service struct {
	Store   repository.Backend
	Records *record.Service
	Index   *IndexCache
	Logger  *slog.Logger

	// TTL bounds snapshot, history and rollback retention.
	TTL time.Duration

	// Now is the time source; tests override it.
	Now func() time.Time
}

// NewService creates a backup service.
func NewService(store repository.Backend, records *record.Service, index *IndexCache, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:   store,
		Records: records,
		Index:   index,
		Logger:  logger,
		TTL:     ttl,
		Now:     time.Now,
	}
}

// CreateSnapshot persists an operator-triggered snapshot of the document.
// Snapshots are unbounded in count; only the TTL reclaims them.
func (s *Service) CreateSnapshot(ctx context.Context, doc *entity.SyncDocument) (string, error) {
	payload, err := encode(doc)
	if err != nil {
		return "", err
	}
	key := SnapshotKey(s.Now())
	if _, err := s.Store.Put(ctx, key, payload, repository.PutOptions{TTL: s.TTL}); err != nil {
		return "", err
	}
	return key, nil
}

// CreateHistoryEntry persists a history snapshot for an accepted sync.
// Automatic syncs are skipped unless force is set, bounding churn from
// high-frequency background syncs; the returned key is empty when skipped.
func (s *Service) CreateHistoryEntry(ctx context.Context, doc *entity.SyncDocument, kind string, force bool) (string, error) {
	if entity.NormalizeSyncKind(kind) != entity.SyncKindManual && !force {
		return "", nil
	}

	payload, err := encode(doc)
	if err != nil {
		return "", err
	}
	key := HistoryKey(s.Now())
	if _, err := s.Store.Put(ctx, key, payload, repository.PutOptions{TTL: s.TTL}); err != nil {
		return "", err
	}
	s.Index.Update(ctx, key, doc.Meta)
	return key, nil
}

// Get loads one backup by key. Returns ErrBackupNotFound when the key holds
// no value (never written, expired, or deleted).
func (s *Service) Get(ctx context.Context, key string) (*entity.SyncDocument, error) {
	if err := ValidateBackupKey(key); err != nil {
		return nil, err
	}
	value, _, found, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrBackupNotFound
	}
	var doc entity.SyncDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal backup %s: %w", key, err)
	}
	return &doc, nil
}

// List returns the history listing, newest first, flagging the entry whose
// version matches the current main document. The cached index serves the
// common case; a missing or incomplete cache triggers a rebuild.
func (s *Service) List(ctx context.Context) ([]entity.BackupListItem, error) {
	idx, err := s.Index.Read(ctx)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		idx, err = s.Index.Rebuild(ctx)
		if err != nil {
			return nil, err
		}
	}

	current, _, err := s.Records.ReadCurrent(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]entity.BackupListItem, 0, len(idx.Items))
	for _, e := range idx.Items {
		items = append(items, entity.BackupListItem{
			Key:       e.Key,
			UpdatedAt: e.Meta.UpdatedAt,
			DeviceID:  e.Meta.DeviceID,
			Browser:   e.Meta.Browser,
			OS:        e.Meta.OS,
			Version:   e.Meta.Version,
			SyncKind:  e.Meta.SyncKind,
			IsCurrent: current != nil && e.Meta.Version == current.Meta.Version,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt > items[j].UpdatedAt
	})
	return items, nil
}

// RestoreResult carries the restored document and the rollback point taken
// just before the restore overwrote the main document. RollbackKey is empty
// when rollback creation failed; the restore proceeds regardless.
type RestoreResult struct {
	Document    *entity.SyncDocument
	RollbackKey string
}

// Restore replaces the main document with the named backup. The current
// document is snapshotted first (best-effort) so the restore itself can be
// undone, and the restore is recorded as a manual history entry
// (best-effort).
func (s *Service) Restore(ctx context.Context, backupKey, deviceID string) (*RestoreResult, error) {
	backupDoc, err := s.Get(ctx, backupKey)
	if err != nil {
		return nil, err
	}

	current, _, err := s.Records.ReadCurrent(ctx)
	if err != nil {
		return nil, err
	}

	rollbackKey := ""
	if current != nil {
		rollbackKey, err = s.CreateSnapshot(ctx, current)
		if err != nil {
			s.Logger.Warn("rollback snapshot creation failed, restore proceeds",
				slog.String("backup_key", backupKey), slog.Any("error", err))
			rollbackKey = ""
		}
	}

	candidate := backupDoc.Clone()
	candidate.Meta.DeviceID = deviceID
	candidate.Meta.SyncKind = entity.SyncKindManual

	restored, err := s.Records.Write(ctx, record.WriteInput{Document: candidate})
	if err != nil {
		return nil, err
	}

	if _, err := s.CreateHistoryEntry(ctx, restored, entity.SyncKindManual, false); err != nil {
		s.Logger.Warn("history entry for restore failed",
			slog.String("backup_key", backupKey), slog.Any("error", err))
	}

	return &RestoreResult{Document: restored, RollbackKey: rollbackKey}, nil
}

// Delete removes one backup. Snapshot keys delete unconditionally and
// idempotently. A history key is rejected with ErrActiveHistoryEntry when its
// recorded version equals the current main document's version; the check
// prefers the cached index's metadata and only falls back to reading the
// backup body when the index lacks the key.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := ValidateBackupKey(key); err != nil {
		return err
	}

	if isHistoryKey(key) {
		version, known, err := s.historyEntryVersion(ctx, key)
		if err != nil {
			return err
		}
		if known {
			current, _, err := s.Records.ReadCurrent(ctx)
			if err != nil {
				return err
			}
			if current != nil && version == current.Meta.Version {
				return ErrActiveHistoryEntry
			}
		}
	}

	if err := s.Store.Delete(ctx, key); err != nil {
		return err
	}
	s.Index.Remove(ctx, key)
	return nil
}

// historyEntryVersion resolves the stored version of a history entry.
// known=false means the entry no longer exists anywhere, in which case the
// delete degenerates to a no-op.
func (s *Service) historyEntryVersion(ctx context.Context, key string) (int, bool, error) {
	if idx, err := s.Index.Read(ctx); err == nil && idx != nil {
		for _, e := range idx.Items {
			if e.Key == key {
				return e.Meta.Version, true, nil
			}
		}
	}

	value, _, found, err := s.Store.Get(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	var doc entity.SyncDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		// Unreadable body cannot be version-matched; allow the delete.
		s.Logger.Warn("unreadable history entry body", slog.String("key", key), slog.Any("error", err))
		return 0, false, nil
	}
	return doc.Meta.Version, true, nil
}

// encode sanitizes (admin view: plaintext secret cleared, ciphertext kept for
// local decryption after restore) and size-checks a document for backup
// storage.
func encode(doc *entity.SyncDocument) ([]byte, error) {
	payload, err := json.Marshal(entity.AdminView(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	if len(payload) > repository.MaxBlobValueBytes {
		return nil, record.ErrPayloadTooLarge
	}
	return payload, nil
}
