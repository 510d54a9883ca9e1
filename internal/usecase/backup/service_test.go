package backup_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/infra/adapter/storage/memory"
	"homeboard-sync/internal/usecase/backup"
	"homeboard-sync/internal/usecase/record"
)

const ringSize = 20

type fixture struct {
	store   *memory.Store
	records *record.Service
	backups *backup.Service
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewBlob()
	records := record.NewService(store, nil, nil)
	index := backup.NewIndexCache(store, ringSize, 50, nil)
	backups := backup.NewService(store, records, index, 30*24*time.Hour, nil)

	f := &fixture{store: store, records: records, backups: backups,
		now: time.UnixMilli(1735689600000)}
	records.Now = func() time.Time { return f.now }
	backups.Now = func() time.Time { return f.now }
	return f
}

// tick advances the fixture clock so successive keys never collide.
func (f *fixture) tick() { f.now = f.now.Add(time.Second) }

func (f *fixture) writeDoc(t *testing.T) *entity.SyncDocument {
	t.Helper()
	f.tick()
	doc, err := f.records.Write(context.Background(), record.WriteInput{
		Document: &entity.SyncDocument{
			Links:         []entity.Link{},
			Categories:    []entity.Category{},
			SchemaVersion: 1,
			Meta:          entity.SyncMeta{DeviceID: "dev-1", SyncKind: "manual"},
		},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	return doc
}

func TestCreateSnapshot(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t)

	key, err := f.backups.CreateSnapshot(context.Background(), doc)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if !f.store.Has(key) {
		t.Fatal("snapshot not persisted")
	}

	got, err := f.backups.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Meta.Version != doc.Meta.Version {
		t.Fatalf("snapshot version=%d, want %d", got.Meta.Version, doc.Meta.Version)
	}
}

func TestCreateSnapshot_SanitizesAPIKey(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t)
	doc.AIConfig = &entity.AIConfig{Provider: "openai", APIKey: "sk-secret"}

	key, err := f.backups.CreateSnapshot(context.Background(), doc)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	raw, _, _, _ := f.store.Get(context.Background(), key)
	var stored entity.SyncDocument
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stored.AIConfig.APIKey != "" {
		t.Fatal("plaintext API key persisted into backup")
	}
}

func TestCreateHistoryEntry_SkipsAutoKind(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t)

	key, err := f.backups.CreateHistoryEntry(context.Background(), doc, entity.SyncKindAuto, false)
	if err != nil {
		t.Fatalf("CreateHistoryEntry: %v", err)
	}
	if key != "" {
		t.Fatalf("auto sync produced history entry %q", key)
	}

	// force overrides the policy.
	key, err = f.backups.CreateHistoryEntry(context.Background(), doc, entity.SyncKindAuto, true)
	if err != nil || key == "" {
		t.Fatalf("forced entry: key=%q err=%v", key, err)
	}
}

func TestList_RingBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Write more manual entries than the ring holds.
	for i := 0; i < ringSize+5; i++ {
		doc := f.writeDoc(t)
		if _, err := f.backups.CreateHistoryEntry(ctx, doc, entity.SyncKindManual, false); err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
	}

	items, err := f.backups.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != ringSize {
		t.Fatalf("listed %d entries, want %d", len(items), ringSize)
	}

	// Newest first, and the newest entry matches the current document.
	for i := 1; i < len(items); i++ {
		if items[i-1].UpdatedAt < items[i].UpdatedAt {
			t.Fatalf("listing not sorted at %d", i)
		}
	}
	if !items[0].IsCurrent {
		t.Fatal("newest entry should be flagged current")
	}
	for _, it := range items[1:] {
		if it.IsCurrent {
			t.Fatalf("stale entry %s flagged current", it.Key)
		}
	}
}

func TestList_RebuildsMissingIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.writeDoc(t)
	key, _ := f.backups.CreateHistoryEntry(ctx, doc, entity.SyncKindManual, false)

	// Lose the cache; listing must recover from the backend.
	if err := f.store.Delete(ctx, backup.IndexKey); err != nil {
		t.Fatalf("delete index: %v", err)
	}

	items, err := f.backups.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Key != key {
		t.Fatalf("items=%+v", items)
	}
}

func TestDelete_SnapshotIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.writeDoc(t)

	key, _ := f.backups.CreateSnapshot(ctx, doc)
	if err := f.backups.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Second delete of a gone key stays silent.
	if err := f.backups.Delete(ctx, key); err != nil {
		t.Fatalf("repeat Delete: %v", err)
	}
}

func TestDelete_RejectsActiveHistoryEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.writeDoc(t)
	key, _ := f.backups.CreateHistoryEntry(ctx, doc, entity.SyncKindManual, false)

	err := f.backups.Delete(ctx, key)
	if err != backup.ErrActiveHistoryEntry {
		t.Fatalf("err=%v, want ErrActiveHistoryEntry", err)
	}
	if !f.store.Has(key) {
		t.Fatal("active entry was deleted")
	}

	// After another write the entry is no longer current and may go.
	f.writeDoc(t)
	if err := f.backups.Delete(ctx, key); err != nil {
		t.Fatalf("Delete after version moved on: %v", err)
	}
}

func TestDelete_RejectsForeignKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeDoc(t)

	for _, key := range []string{"sync:data", backup.IndexKey, "auth:attempt:xyz", ""} {
		if err := f.backups.Delete(ctx, key); err == nil {
			t.Errorf("Delete(%q) accepted", key)
		}
	}
	if !f.store.Has("sync:data") {
		t.Fatal("main document deleted through the backup API")
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.backups.Get(context.Background(), "sync:backup:1700000000000")
	if err != backup.ErrBackupNotFound {
		t.Fatalf("err=%v, want ErrBackupNotFound", err)
	}
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.writeDoc(t)
	snapKey, err := f.backups.CreateSnapshot(ctx, first)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	second := f.writeDoc(t)

	f.tick()
	result, err := f.backups.Restore(ctx, snapKey, "laptop-z9")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// The restore is a fresh write: version keeps moving forward.
	if result.Document.Meta.Version != second.Meta.Version+1 {
		t.Fatalf("restored version=%d, want %d",
			result.Document.Meta.Version, second.Meta.Version+1)
	}
	if result.Document.Meta.DeviceID != "laptop-z9" {
		t.Fatalf("deviceID=%q", result.Document.Meta.DeviceID)
	}
	if result.Document.Meta.SyncKind != entity.SyncKindManual {
		t.Fatalf("syncKind=%q", result.Document.Meta.SyncKind)
	}

	// A rollback point of the pre-restore state exists.
	if result.RollbackKey == "" {
		t.Fatal("rollback key missing")
	}
	rollback, err := f.backups.Get(ctx, result.RollbackKey)
	if err != nil {
		t.Fatalf("rollback fetch: %v", err)
	}
	if rollback.Meta.Version != second.Meta.Version {
		t.Fatalf("rollback version=%d, want %d", rollback.Meta.Version, second.Meta.Version)
	}

	// The restored state is what reads now return.
	current, _, err := f.records.ReadCurrent(ctx)
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if current.Meta.Version != result.Document.Meta.Version {
		t.Fatalf("current version=%d", current.Meta.Version)
	}
}

func TestRestore_MissingBackup(t *testing.T) {
	f := newFixture(t)
	f.writeDoc(t)

	_, err := f.backups.Restore(context.Background(), "sync:backup:1700000000000", "dev")
	if err != backup.ErrBackupNotFound {
		t.Fatalf("err=%v, want ErrBackupNotFound", err)
	}
}

func TestRestore_EmptyStoreSkipsRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed only a snapshot, then clear the main document.
	doc := f.writeDoc(t)
	snapKey, _ := f.backups.CreateSnapshot(ctx, doc)
	if err := f.store.Delete(ctx, record.KeyMain); err != nil {
		t.Fatalf("clear main: %v", err)
	}

	f.tick()
	result, err := f.backups.Restore(ctx, snapKey, "dev")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.RollbackKey != "" {
		t.Fatalf("rollback key %q for an empty store", result.RollbackKey)
	}
}

func TestCreateSnapshot_AppliesTTL(t *testing.T) {
	store := memory.NewBlob()
	records := record.NewService(store, nil, nil)
	index := backup.NewIndexCache(store, ringSize, 50, nil)
	backups := backup.NewService(store, records, index, time.Hour, nil)

	now := time.UnixMilli(1735689600000)
	store.SetNow(func() time.Time { return now })
	backups.Now = func() time.Time { return now }
	records.Now = func() time.Time { return now }

	ctx := context.Background()
	doc, err := records.Write(ctx, record.WriteInput{Document: &entity.SyncDocument{
		Links: []entity.Link{}, Categories: []entity.Category{}, SchemaVersion: 1,
	}})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	key, err := backups.CreateSnapshot(ctx, doc)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if store.Has(key) {
		t.Fatal("snapshot survived its TTL")
	}
}
