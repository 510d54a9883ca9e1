package record

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/repository"
)

// KeyMain is the backend key of the main sync document.
const KeyMain = "sync:data"

// WriteInput carries a candidate document plus the optimistic-lock version
// observed by the client. ExpectedVersion nil means "no version check".
type WriteInput struct {
	Document        *entity.SyncDocument
	ExpectedVersion *int
}

// Service reads and writes the main document with optimistic concurrency.
//
// When only the blob store is configured, the version-number comparison in
// Write is the sole guard: two writers that read the same version can still
// race between check and put, so last-write-wins is possible under true
// concurrency on that backend. With the object store the put is conditioned
// on the version tag observed during the same request's read, which closes
// that window.
type Service struct {
	Blob   repository.Backend // always configured
	Object repository.Backend // optional stronger store; may be nil
	Logger *slog.Logger

	// Now is the time source; tests override it.
	Now func() time.Time
}

// NewService creates a record service over the configured backends.
func NewService(blob, object repository.Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Blob: blob, Object: object, Logger: logger, Now: time.Now}
}

// primary returns the backend holding the main document.
func (s *Service) primary() repository.Backend {
	if s.Object != nil {
		return s.Object
	}
	return s.Blob
}

// ReadCurrent returns the current main document and, on the object store, the
// version tag it was read with. A nil document with nil error means the store
// is empty.
//
// When the object store is configured but empty while the blob store still
// holds a legacy copy, the copy is migrated with an absent-only conditional
// write so a concurrent migration cannot clobber newer data; if migration does
// not take effect the freshly-read object value (or the blob value) is served.
func (s *Service) ReadCurrent(ctx context.Context) (*entity.SyncDocument, string, error) {
	if s.Object == nil {
		doc, err := s.readBlob(ctx)
		return doc, "", err
	}

	value, tag, found, err := s.Object.Get(ctx, KeyMain)
	if err != nil {
		return nil, "", err
	}
	if found {
		doc, err := decode(value)
		return doc, tag, err
	}

	// Object store empty: check for a legacy blob copy to migrate.
	legacy, _, legacyFound, err := s.Blob.Get(ctx, KeyMain)
	if err != nil || !legacyFound {
		return nil, "", err
	}

	accepted, putErr := s.Object.Put(ctx, KeyMain, legacy, repository.PutOptions{
		Condition: repository.ConditionAbsent,
	})
	if putErr != nil {
		s.Logger.Warn("legacy document migration failed, serving blob copy",
			slog.Any("error", putErr))
		doc, err := decode(legacy)
		return doc, "", err
	}
	if !accepted {
		// A concurrent writer populated the object store first; its value wins.
		value, tag, found, err = s.Object.Get(ctx, KeyMain)
		if err == nil && found {
			doc, derr := decode(value)
			return doc, tag, derr
		}
	} else {
		value, tag, found, err = s.Object.Get(ctx, KeyMain)
		if err == nil && found {
			doc, derr := decode(value)
			return doc, tag, derr
		}
	}

	doc, derr := decode(legacy)
	return doc, "", derr
}

// Write validates and stores a candidate document, stamping the
// server-authoritative meta fields. On a stale expected version or a lost
// conditional-write race it returns a *ConflictError carrying the latest
// admin-sanitized document; the store is unchanged in that case.
func (s *Service) Write(ctx context.Context, in WriteInput) (*entity.SyncDocument, error) {
	if err := entity.ValidateDocument(in.Document); err != nil {
		return nil, err
	}

	current, tag, err := s.ReadCurrent(ctx)
	if err != nil {
		return nil, err
	}

	if in.ExpectedVersion != nil && current != nil && current.Meta.Version != *in.ExpectedVersion {
		return nil, &ConflictError{Latest: entity.AdminView(current)}
	}

	doc := in.Document.Clone()
	newVersion := 1
	if current != nil {
		newVersion = current.Meta.Version + 1
	}
	doc.Meta.Version = newVersion
	doc.Meta.UpdatedAt = s.Now().UnixMilli()
	doc.Meta.SyncKind = entity.NormalizeSyncKind(doc.Meta.SyncKind)

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	if s.Object == nil {
		if len(payload) > repository.MaxBlobValueBytes {
			return nil, ErrPayloadTooLarge
		}
		if _, err := s.Blob.Put(ctx, KeyMain, payload, repository.PutOptions{}); err != nil {
			return nil, err
		}
		return doc, nil
	}

	opts := repository.PutOptions{Condition: repository.ConditionAbsent}
	if current != nil {
		opts = repository.PutOptions{Condition: repository.ConditionTagMatch, Tag: tag}
	}
	accepted, err := s.Object.Put(ctx, KeyMain, payload, opts)
	if err != nil {
		return nil, err
	}
	if !accepted {
		// A concurrent writer won the race; never overwrite blindly.
		latest, _, rerr := s.ReadCurrent(ctx)
		if rerr != nil {
			s.Logger.Warn("re-read after rejected conditional write failed",
				slog.Any("error", rerr))
		}
		return nil, &ConflictError{Latest: entity.AdminView(latest)}
	}
	return doc, nil
}

func (s *Service) readBlob(ctx context.Context) (*entity.SyncDocument, error) {
	value, _, found, err := s.Blob.Get(ctx, KeyMain)
	if err != nil || !found {
		return nil, err
	}
	return decode(value)
}

func decode(value []byte) (*entity.SyncDocument, error) {
	var doc entity.SyncDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal main document: %w", err)
	}
	return &doc, nil
}
