// Package entity defines the core domain entities and validation logic for the application.
// It contains the shared sync document, its server-managed metadata, backup/history
// projections, and their validation rules and domain-specific errors.
package entity

import "encoding/json"

// Sync kinds distinguish background synchronization from explicit user-triggered saves.
// Only manual syncs produce history entries by default.
const (
	SyncKindAuto   = "auto"
	SyncKindManual = "manual"
)

// SyncMeta is the server-managed metadata attached to every stored document.
// The server is the sole authority for UpdatedAt, Version and SyncKind;
// values supplied by clients are always overwritten on an accepted write.
type SyncMeta struct {
	UpdatedAt int64  `json:"updatedAt"`
	DeviceID  string `json:"deviceId"`
	Version   int    `json:"version"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	SyncKind  string `json:"syncKind"`
}

// Link is a single bookmarked link on the board.
type Link struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	CategoryID string `json:"categoryId,omitempty"`
	Icon       string `json:"icon,omitempty"`
	Position   int    `json:"position,omitempty"`
}

// Category groups links on the board.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Countdown is a countdown tile. Recurrence computation happens client-side;
// the server stores the definition opaquely.
type Countdown struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Target string          `json:"target"`
	Color  string          `json:"color,omitempty"`
	Repeat json.RawMessage `json:"repeat,omitempty"`
}

// AIConfig holds the user's AI provider configuration. APIKey is plaintext
// client-side state and must never leave the server unmasked (see AdminView).
type AIConfig struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

// SyncDocument is the single shared record synchronized across devices.
// VaultData and EncryptedSettings are ciphertext blobs the server never
// interprets; PrivacySettings is privacy-adjacent client state. All three
// are stripped from the public view.
type SyncDocument struct {
	Links             []Link          `json:"links"`
	Categories        []Category      `json:"categories"`
	Countdowns        []Countdown     `json:"countdowns,omitempty"`
	SchemaVersion     int             `json:"schemaVersion"`
	Meta              SyncMeta        `json:"meta"`
	VaultData         json.RawMessage `json:"vaultData,omitempty"`
	EncryptedSettings json.RawMessage `json:"encryptedSettings,omitempty"`
	PrivacySettings   json.RawMessage `json:"privacySettings,omitempty"`
	AIConfig          *AIConfig       `json:"aiConfig,omitempty"`
}

// Clone returns a deep copy of the document. Projections operate on the copy
// so callers can hand out views without mutating stored state.
func (d *SyncDocument) Clone() *SyncDocument {
	if d == nil {
		return nil
	}
	out := *d
	// Emptiness is load-bearing: validation distinguishes [] from a missing
	// array, so an empty slice must not collapse to nil.
	if d.Links != nil {
		out.Links = make([]Link, len(d.Links))
		copy(out.Links, d.Links)
	}
	if d.Categories != nil {
		out.Categories = make([]Category, len(d.Categories))
		copy(out.Categories, d.Categories)
	}
	if d.Countdowns != nil {
		out.Countdowns = make([]Countdown, len(d.Countdowns))
		for i, c := range d.Countdowns {
			out.Countdowns[i] = c
			out.Countdowns[i].Repeat = append(json.RawMessage(nil), c.Repeat...)
		}
	}
	out.VaultData = append(json.RawMessage(nil), d.VaultData...)
	out.EncryptedSettings = append(json.RawMessage(nil), d.EncryptedSettings...)
	out.PrivacySettings = append(json.RawMessage(nil), d.PrivacySettings...)
	if d.AIConfig != nil {
		cfg := *d.AIConfig
		out.AIConfig = &cfg
	}
	return &out
}

// NormalizeSyncKind maps arbitrary client input onto the two valid kinds.
// Anything that is not exactly "manual" is treated as an automatic sync.
func NormalizeSyncKind(kind string) string {
	if kind == SyncKindManual {
		return SyncKindManual
	}
	return SyncKindAuto
}
