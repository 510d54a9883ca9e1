package backup

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/observability/metrics"
	"homeboard-sync/internal/repository"
)

// indexVersion marks the persisted index format. An index with a different
// version is treated as incomplete and rebuilt.
const indexVersion = 1

// metaFetchParallelism bounds concurrent snapshot reads during rebuild.
const metaFetchParallelism = 4

// IndexCache maintains the denormalized history listing. It is a cache, not
// a source of truth: every read path can fall back to Rebuild, which derives
// the index purely from the authoritative backend listing, so losing or
// corrupting the cached value is always recoverable.
type IndexCache struct {
	Store    repository.Backend
	RingSize int
	MaxPages int
	Logger   *slog.Logger
}

// NewIndexCache creates an index cache over the backup store.
func NewIndexCache(store repository.Backend, ringSize, maxPages int, logger *slog.Logger) *IndexCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexCache{Store: store, RingSize: ringSize, MaxPages: maxPages, Logger: logger}
}

// Read returns the cached index, or nil when it is missing, unreadable or of
// an unknown format version. Callers must rebuild on nil.
func (c *IndexCache) Read(ctx context.Context) (*entity.HistoryIndex, error) {
	value, _, found, err := c.Store.Get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var idx entity.HistoryIndex
	if err := json.Unmarshal(value, &idx); err != nil {
		c.Logger.Warn("history index unreadable, forcing rebuild", slog.Any("error", err))
		return nil, nil
	}
	if idx.Version != indexVersion || idx.Items == nil {
		return nil, nil
	}
	return &idx, nil
}

// Rebuild derives a fresh index from a full backend listing: enumerate all
// history keys (bounded pages, de-duplicated cursors), keep the newest
// RingSize entries, delete the overflow from the backend, backfill metas and
// persist the result. Rebuild is idempotent; repeated runs converge.
func (c *IndexCache) Rebuild(ctx context.Context) (*entity.HistoryIndex, error) {
	metrics.RecordHistoryIndexRebuild()

	keys, err := c.listAllHistoryKeys(ctx)
	if err != nil {
		return nil, err
	}

	sortKeysNewestFirst(keys)

	keep := keys
	if len(keep) > c.RingSize {
		keep = keys[:c.RingSize]
		for _, key := range keys[c.RingSize:] {
			if err := c.Store.Delete(ctx, key); err != nil {
				c.Logger.Warn("failed to delete overflow history entry",
					slog.String("key", key), slog.Any("error", err))
			}
		}
	}

	// Reuse metas already known from the previous index; only fetch the rest.
	known := map[string]entity.SyncMeta{}
	if prev, err := c.Read(ctx); err == nil && prev != nil {
		for _, item := range prev.Items {
			known[item.Key] = item.Meta
		}
	}

	items := make([]entity.HistoryIndexEntry, len(keep))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metaFetchParallelism)
	for i, key := range keep {
		items[i] = entity.HistoryIndexEntry{Key: key}
		if meta, ok := known[key]; ok && meta.UpdatedAt > 0 {
			items[i].Meta = meta
			continue
		}
		g.Go(func() error {
			meta, err := c.fetchMeta(gctx, key)
			if err != nil {
				// Entry may have expired between listing and fetch; fall back
				// to the key-derived timestamp so ordering stays correct.
				c.Logger.Warn("failed to fetch history entry meta",
					slog.String("key", key), slog.Any("error", err))
				ts, _ := keyTimestamp(key)
				meta = entity.SyncMeta{UpdatedAt: ts}
			}
			items[i].Meta = meta
			return nil
		})
	}
	_ = g.Wait()

	idx := &entity.HistoryIndex{Version: indexVersion, Items: items}
	c.persist(ctx, idx)
	return idx, nil
}

// Update opportunistically folds a freshly written history entry into the
// cached index: prepend, drop any duplicate of the same key, re-sort,
// truncate to the ring size and delete the overflow. A missing cache is left
// missing (the next listing rebuilds from the backend), and persistence
// failures are logged, never surfaced: the caller's write already succeeded.
func (c *IndexCache) Update(ctx context.Context, key string, meta entity.SyncMeta) {
	idx, err := c.Read(ctx)
	if err != nil {
		c.Logger.Warn("history index read failed during update", slog.Any("error", err))
		return
	}
	if idx == nil {
		return
	}

	items := make([]entity.HistoryIndexEntry, 0, len(idx.Items)+1)
	items = append(items, entity.HistoryIndexEntry{Key: key, Meta: meta})
	for _, item := range idx.Items {
		if item.Key != key {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return entryTimestamp(items[i]) > entryTimestamp(items[j])
	})

	if len(items) > c.RingSize {
		for _, item := range items[c.RingSize:] {
			if err := c.Store.Delete(ctx, item.Key); err != nil {
				c.Logger.Warn("failed to delete overflow history entry",
					slog.String("key", item.Key), slog.Any("error", err))
			}
		}
		items = items[:c.RingSize]
	}

	idx.Items = items
	c.persist(ctx, idx)
}

// Remove drops one entry from the cached index if present. A missing cache
// or missing entry is a no-op.
func (c *IndexCache) Remove(ctx context.Context, key string) {
	idx, err := c.Read(ctx)
	if err != nil || idx == nil {
		return
	}
	items := idx.Items[:0]
	removed := false
	for _, item := range idx.Items {
		if item.Key == key {
			removed = true
			continue
		}
		items = append(items, item)
	}
	if !removed {
		return
	}
	idx.Items = items
	c.persist(ctx, idx)
}

// listAllHistoryKeys pages through the backend listing with a hard iteration
// cap and de-duplication of both cursors and keys, guarding against
// pathological backends that repeat pages or keys.
func (c *IndexCache) listAllHistoryKeys(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	seenCursors := map[string]struct{}{}
	var keys []string

	token := ""
	for i := 0; i < c.MaxPages; i++ {
		page, next, err := c.Store.List(ctx, HistoryPrefix, token)
		if err != nil {
			return nil, err
		}
		for _, key := range page {
			if !isHistoryKey(key) {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		if next == "" {
			return keys, nil
		}
		if _, looped := seenCursors[next]; looped {
			c.Logger.Warn("history listing cursor repeated, stopping iteration",
				slog.String("cursor", next))
			return keys, nil
		}
		seenCursors[next] = struct{}{}
		token = next
	}
	c.Logger.Warn("history listing hit iteration cap", slog.Int("max_pages", c.MaxPages))
	return keys, nil
}

func (c *IndexCache) fetchMeta(ctx context.Context, key string) (entity.SyncMeta, error) {
	value, _, found, err := c.Store.Get(ctx, key)
	if err != nil {
		return entity.SyncMeta{}, err
	}
	if !found {
		return entity.SyncMeta{}, ErrBackupNotFound
	}
	var doc entity.SyncDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		return entity.SyncMeta{}, err
	}
	return doc.Meta, nil
}

func (c *IndexCache) persist(ctx context.Context, idx *entity.HistoryIndex) {
	payload, err := json.Marshal(idx)
	if err != nil {
		c.Logger.Warn("failed to marshal history index", slog.Any("error", err))
		return
	}
	if _, err := c.Store.Put(ctx, IndexKey, payload, repository.PutOptions{}); err != nil {
		c.Logger.Warn("failed to persist history index", slog.Any("error", err))
	}
}

func entryTimestamp(e entity.HistoryIndexEntry) int64 {
	if e.Meta.UpdatedAt > 0 {
		return e.Meta.UpdatedAt
	}
	ts, _ := keyTimestamp(e.Key)
	return ts
}

// sortKeysNewestFirst orders history keys by their embedded timestamp
// descending, breaking millisecond ties by key so ordering is stable.
func sortKeysNewestFirst(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ti, _ := keyTimestamp(keys[i])
		tj, _ := keyTimestamp(keys[j])
		if ti != tj {
			return ti > tj
		}
		return keys[i] > keys[j]
	})
}
