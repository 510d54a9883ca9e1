package entity

// AdminView returns a copy of the document safe to hand to an authenticated
// admin device. Only the plaintext AI API key is cleared; encrypted blobs are
// preserved so the admin client can decrypt them locally.
func AdminView(doc *SyncDocument) *SyncDocument {
	if doc == nil {
		return nil
	}
	out := doc.Clone()
	if out.AIConfig != nil {
		out.AIConfig.APIKey = ""
	}
	return out
}

// PublicView returns a copy of the document safe for unauthenticated readers.
// On top of AdminView's clearing, every privacy-adjacent field is removed
// unconditionally so neither ciphertext nor its metadata reaches a non-admin
// reader.
func PublicView(doc *SyncDocument) *SyncDocument {
	out := AdminView(doc)
	if out == nil {
		return nil
	}
	out.VaultData = nil
	out.EncryptedSettings = nil
	out.PrivacySettings = nil
	return out
}
