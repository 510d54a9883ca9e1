package entity

import "fmt"

// Limits applied to incoming documents before any storage call.
// Item caps bound worst-case normalization cost; the byte ceiling of the
// blob store is enforced separately by the record manager.
const (
	maxLinks       = 2000
	maxCategories  = 200
	maxCountdowns  = 200
	maxTitleLength = 512
	maxURLLength   = 2048
)

// ValidateDocument checks the structural validity of a candidate document.
// Links and categories must be present (empty slices are fine, nil is not:
// the client always sends both arrays, so their absence signals a malformed
// payload). Returns a ValidationError describing the first violation.
func ValidateDocument(doc *SyncDocument) error {
	if doc == nil {
		return &ValidationError{Field: "document", Message: "document is required"}
	}
	if doc.Links == nil {
		return &ValidationError{Field: "links", Message: "links array is required"}
	}
	if doc.Categories == nil {
		return &ValidationError{Field: "categories", Message: "categories array is required"}
	}
	if len(doc.Links) > maxLinks {
		return &ValidationError{
			Field:   "links",
			Message: fmt.Sprintf("links must not exceed %d entries", maxLinks),
		}
	}
	if len(doc.Categories) > maxCategories {
		return &ValidationError{
			Field:   "categories",
			Message: fmt.Sprintf("categories must not exceed %d entries", maxCategories),
		}
	}
	if len(doc.Countdowns) > maxCountdowns {
		return &ValidationError{
			Field:   "countdowns",
			Message: fmt.Sprintf("countdowns must not exceed %d entries", maxCountdowns),
		}
	}
	for i, l := range doc.Links {
		if len(l.Title) > maxTitleLength {
			return &ValidationError{
				Field:   fmt.Sprintf("links[%d].title", i),
				Message: fmt.Sprintf("title must not exceed %d characters", maxTitleLength),
			}
		}
		if len(l.URL) > maxURLLength {
			return &ValidationError{
				Field:   fmt.Sprintf("links[%d].url", i),
				Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
			}
		}
	}
	return nil
}
