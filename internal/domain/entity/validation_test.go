package entity_test

import (
	"errors"
	"strings"
	"testing"

	"homeboard-sync/internal/domain/entity"
)

func validDoc() *entity.SyncDocument {
	return &entity.SyncDocument{
		Links:         []entity.Link{},
		Categories:    []entity.Category{},
		SchemaVersion: 1,
	}
}

func TestValidateDocument_Valid(t *testing.T) {
	if err := entity.ValidateDocument(validDoc()); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}

// Clients that predate the schemaVersion field send documents without it, so
// the zero value must pass.
func TestValidateDocument_SchemaVersionZero(t *testing.T) {
	doc := validDoc()
	doc.SchemaVersion = 0
	if err := entity.ValidateDocument(doc); err != nil {
		t.Fatalf("schemaVersion 0 rejected: %v", err)
	}
}

func TestValidationError_MatchesSentinel(t *testing.T) {
	doc := validDoc()
	doc.Links = nil

	err := entity.ValidateDocument(doc)
	if !errors.Is(err, entity.ErrValidationFailed) {
		t.Fatalf("err %v does not match ErrValidationFailed", err)
	}
}

func TestValidateDocument_Violations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*entity.SyncDocument)
		wantField string
	}{
		{
			name:      "nil links",
			mutate:    func(d *entity.SyncDocument) { d.Links = nil },
			wantField: "links",
		},
		{
			name:      "nil categories",
			mutate:    func(d *entity.SyncDocument) { d.Categories = nil },
			wantField: "categories",
		},
		{
			name: "too many links",
			mutate: func(d *entity.SyncDocument) {
				d.Links = make([]entity.Link, 2001)
			},
			wantField: "links",
		},
		{
			name: "oversized link title",
			mutate: func(d *entity.SyncDocument) {
				d.Links = []entity.Link{{Title: strings.Repeat("x", 513)}}
			},
			wantField: "links[0].title",
		},
		{
			name: "oversized link url",
			mutate: func(d *entity.SyncDocument) {
				d.Links = []entity.Link{{URL: strings.Repeat("x", 2049)}}
			},
			wantField: "links[0].url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)

			err := entity.ValidateDocument(doc)
			if err == nil {
				t.Fatal("expected validation error")
			}
			verr, ok := err.(*entity.ValidationError)
			if !ok {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidateDocument_Nil(t *testing.T) {
	err := entity.ValidateDocument(nil)
	if err == nil {
		t.Fatal("nil document must be rejected")
	}
}
