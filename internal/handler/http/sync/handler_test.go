package sync_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"homeboard-sync/internal/domain/entity"
	"homeboard-sync/internal/handler/http/auth"
	hsync "homeboard-sync/internal/handler/http/sync"
	"homeboard-sync/internal/infra/adapter/storage/memory"
	"homeboard-sync/internal/service/lockout"
	"homeboard-sync/internal/usecase/backup"
	"homeboard-sync/internal/usecase/record"
)

const (
	testPassword = "correct-horse-battery-staple"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

type fixture struct {
	mux     *http.ServeMux
	records *record.Service
	backups *backup.Service
	blob    *memory.Store
	issuer  *auth.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	blob := memory.NewBlob()
	object := memory.New()

	records := record.NewService(blob, object, nil)
	now := time.UnixMilli(1735689600000)
	records.Now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	index := backup.NewIndexCache(blob, 20, 40, nil)
	backups := backup.NewService(blob, records, index, 30*24*time.Hour, nil)
	lock := lockout.NewService(blob, time.Hour, nil, nil)
	issuer := auth.NewIssuer([]byte(testSecret), time.Hour)
	provider := auth.NewProvider(testPassword)

	h := hsync.NewHandler(records, backups, lock, provider, issuer, nil, nil)
	mux := http.NewServeMux()
	hsync.Register(mux, h)

	return &fixture{
		mux:     mux,
		records: records,
		backups: backups,
		blob:    blob,
		issuer:  issuer,
	}
}

func (f *fixture) token(t *testing.T) string {
	t.Helper()
	token, err := f.issuer.Issue(auth.RoleAdmin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// do performs a request against the mounted surface and decodes the JSON
// envelope. bearer is placed in the Authorization header when non-empty.
func (f *fixture) do(t *testing.T, method, target, bearer string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	envelope := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, envelope
}

func testDocument() *entity.SyncDocument {
	return &entity.SyncDocument{
		Links:         []entity.Link{{ID: "l1", Title: "Home", URL: "https://example.com"}},
		Categories:    []entity.Category{{ID: "c1", Name: "Work"}},
		SchemaVersion: 1,
		Meta:          entity.SyncMeta{DeviceID: "desktop-a1b2", SyncKind: "manual"},
		VaultData:     json.RawMessage(`{"cipher":"abc"}`),
		AIConfig:      &entity.AIConfig{Provider: "openai", APIKey: "sk-verysecret"},
	}
}

func writeBody(doc *entity.SyncDocument, expected *int) map[string]any {
	body := map[string]any{"document": doc}
	if expected != nil {
		body["expectedVersion"] = *expected
	}
	return body
}

// ============================================================
// ディスパッチ
// ============================================================

func TestDispatch_UnknownAction(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/sync?action=bogus"},
		{http.MethodPost, "/api/sync?action=bogus"},
		{http.MethodDelete, "/api/sync"},
		{http.MethodDelete, "/api/sync?action=restore"},
	}
	for _, tc := range cases {
		rec, env := f.do(t, tc.method, tc.target, "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: status=%d, want 400", tc.method, tc.target, rec.Code)
		}
		if env["error"] != "unknown action" {
			t.Fatalf("%s %s: error=%v", tc.method, tc.target, env["error"])
		}
	}
}

func TestDispatch_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPut, "/api/sync", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Fatalf("Allow header %q missing GET", allow)
	}
}

// ============================================================
// 読み取り
// ============================================================

func TestRead_EmptyStore(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/sync", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env["success"] != true {
		t.Fatalf("success=%v", env["success"])
	}
	if env["data"] != nil {
		t.Fatalf("data=%v, want null", env["data"])
	}
}

func TestRead_PublicViewStripsPrivacyFields(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec, env := f.do(t, http.MethodGet, "/api/sync", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	data, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("data=%v", env["data"])
	}
	if _, present := data["vaultData"]; present {
		t.Fatal("vaultData leaked to public view")
	}
	if cfg, ok := data["aiConfig"].(map[string]any); ok {
		if _, present := cfg["apiKey"]; present {
			t.Fatal("apiKey leaked to public view")
		}
	}
	if links, ok := data["links"].([]any); !ok || len(links) != 1 {
		t.Fatalf("links=%v", data["links"])
	}
}

func TestRead_AdminViewKeepsCiphertext(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec, env := f.do(t, http.MethodGet, "/api/sync", f.token(t), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	if _, present := data["vaultData"]; !present {
		t.Fatal("vaultData missing from admin view")
	}
	if cfg, ok := data["aiConfig"].(map[string]any); ok {
		if _, present := cfg["apiKey"]; present {
			t.Fatal("admin view must still mask the API key")
		}
	}
}

func TestRead_RawCredentialGrantsAdmin(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec, env := f.do(t, http.MethodGet, "/api/sync", testPassword, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	if _, present := data["vaultData"]; !present {
		t.Fatal("correct raw credential should get the admin view")
	}
}

func TestRead_WrongCredentialRejected(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec, env := f.do(t, http.MethodGet, "/api/sync", "wrong-password", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	if msg, _ := env["error"].(string); !strings.Contains(msg, "invalid credential") {
		t.Fatalf("error=%v", env["error"])
	}
}

// ============================================================
// ログイン
// ============================================================

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/sync?action=login", "", map[string]any{"password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	token, _ := env["token"].(string)
	if token == "" {
		t.Fatal("empty token")
	}
	if env["role"] != auth.RoleAdmin {
		t.Fatalf("role=%v", env["role"])
	}

	// The issued token must work for an authenticated operation.
	seed := testDocument()
	rec, _ = f.do(t, http.MethodPost, "/api/sync", token, writeBody(seed, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("write with issued token: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLogin_HeaderCredentialFallback(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/sync?action=login", testPassword, map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLogin_MissingCredential(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/sync?action=login", "", map[string]any{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	if env["error"] != "credential required" {
		t.Fatalf("error=%v", env["error"])
	}
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)

	// Default request identity resolves to the connection IP tier, 5 attempts.
	for i := 1; i <= 4; i++ {
		rec, env := f.do(t, http.MethodPost, "/api/sync?action=login", "", map[string]any{"password": "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status=%d body=%s", i, rec.Code, rec.Body.String())
		}
		want := fmt.Sprintf("%d attempts remaining", 5-i)
		if msg, _ := env["error"].(string); !strings.Contains(msg, want) {
			t.Fatalf("attempt %d: error=%v, want %q", i, env["error"], want)
		}
	}

	rec, env := f.do(t, http.MethodPost, "/api/sync?action=login", "", map[string]any{"password": "wrong"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locking attempt: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	if _, ok := env["lockedUntil"].(float64); !ok {
		t.Fatalf("lockedUntil=%v", env["lockedUntil"])
	}
	if secs, ok := env["retryAfterSeconds"].(float64); !ok || secs < 1 {
		t.Fatalf("retryAfterSeconds=%v", env["retryAfterSeconds"])
	}

	// The lock wins even over the correct password.
	rec, _ = f.do(t, http.MethodPost, "/api/sync?action=login", "", map[string]any{"password": testPassword})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locked with correct password: status=%d", rec.Code)
	}
}

// ============================================================
// 書き込み
// ============================================================

func TestWrite_RequiresCredential(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/sync", "", writeBody(testDocument(), nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	if env["error"] != "credential required" {
		t.Fatalf("error=%v", env["error"])
	}
}

func TestWrite_StampsServerMeta(t *testing.T) {
	f := newFixture(t)

	doc := testDocument()
	doc.Meta.Version = 99

	rec, env := f.do(t, http.MethodPost, "/api/sync", f.token(t), writeBody(doc, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	meta := data["meta"].(map[string]any)
	if meta["version"] != float64(1) {
		t.Fatalf("version=%v, want 1", meta["version"])
	}
	if meta["syncKind"] != "manual" {
		t.Fatalf("syncKind=%v", meta["syncKind"])
	}
}

func TestWrite_VersionConflictReturnsLatest(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)

	rec, _ := f.do(t, http.MethodPost, "/api/sync", token, writeBody(testDocument(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("seed write: status=%d", rec.Code)
	}

	stale := 0
	rec, env := f.do(t, http.MethodPost, "/api/sync", token, writeBody(testDocument(), &stale))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env["error"] != "version conflict" {
		t.Fatalf("error=%v", env["error"])
	}
	latest, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("data=%v", env["data"])
	}
	if meta := latest["meta"].(map[string]any); meta["version"] != float64(1) {
		t.Fatalf("latest version=%v, want 1", meta["version"])
	}
}

// A fresh client writes the minimal empty document without a schemaVersion:
// the write succeeds at version 1, and repeating it with the now-stale
// expectedVersion conflicts with the current document attached under data.
func TestWrite_MinimalEmptyDocument(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)
	body := `{"document":{"links":[],"categories":[],"meta":{"version":0}},"expectedVersion":0}`

	rec, env := f.do(t, http.MethodPost, "/api/sync", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	if meta := data["meta"].(map[string]any); meta["version"] != float64(1) {
		t.Fatalf("version=%v, want 1", meta["version"])
	}
	if links, ok := data["links"].([]any); !ok || len(links) != 0 {
		t.Fatalf("links=%v, want []", data["links"])
	}

	rec, env = f.do(t, http.MethodPost, "/api/sync", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale rewrite: status=%d body=%s", rec.Code, rec.Body.String())
	}
	conflictMeta := env["data"].(map[string]any)["meta"].(map[string]any)
	if conflictMeta["version"] != float64(1) {
		t.Fatalf("conflict version=%v, want 1", conflictMeta["version"])
	}
}

func TestWrite_MatchingExpectedVersion(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)

	rec, _ := f.do(t, http.MethodPost, "/api/sync", token, writeBody(testDocument(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("seed write: status=%d", rec.Code)
	}

	current := 1
	rec, env := f.do(t, http.MethodPost, "/api/sync", token, writeBody(testDocument(), &current))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	meta := env["data"].(map[string]any)["meta"].(map[string]any)
	if meta["version"] != float64(2) {
		t.Fatalf("version=%v, want 2", meta["version"])
	}
}

func TestWrite_InvalidBody(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)

	rec, env := f.do(t, http.MethodPost, "/api/sync", token, "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage body: status=%d", rec.Code)
	}
	if env["error"] != "invalid request body" {
		t.Fatalf("error=%v", env["error"])
	}

	rec, env = f.do(t, http.MethodPost, "/api/sync", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing document: status=%d", rec.Code)
	}
	if env["error"] != "document is required" {
		t.Fatalf("error=%v", env["error"])
	}
}

func TestWrite_ValidationError(t *testing.T) {
	f := newFixture(t)

	doc := testDocument()
	doc.Links = nil

	rec, env := f.do(t, http.MethodPost, "/api/sync", f.token(t), writeBody(doc, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env["success"] != false {
		t.Fatalf("success=%v", env["success"])
	}
	msg, _ := env["error"].(string)
	if !strings.Contains(msg, "links") {
		t.Fatalf("error=%q, want the failing field named", msg)
	}
}

// ============================================================
// 認証状態
// ============================================================

func TestAuthStatus(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/sync?action=auth", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous: status=%d", rec.Code)
	}
	if env["role"] != auth.RolePublic {
		t.Fatalf("anonymous role=%v", env["role"])
	}

	rec, env = f.do(t, http.MethodGet, "/api/sync?action=auth", f.token(t), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token: status=%d", rec.Code)
	}
	if env["role"] != auth.RoleAdmin {
		t.Fatalf("token role=%v", env["role"])
	}
	if perms, ok := env["permissions"].([]any); !ok || len(perms) == 0 {
		t.Fatalf("permissions=%v", env["permissions"])
	}

	rec, _ = f.do(t, http.MethodGet, "/api/sync?action=auth", "wrong-password", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong credential: status=%d", rec.Code)
	}
}

// ============================================================
// バックアップ
// ============================================================

// Every backup-lifecycle operation sits behind the admin permission table.
func TestBackupOps_RequireCredential(t *testing.T) {
	f := newFixture(t)

	ops := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/sync?action=backup"},
		{http.MethodGet, "/api/sync?action=backup&key=sync:backup:1"},
		{http.MethodGet, "/api/sync?action=backups"},
		{http.MethodPost, "/api/sync?action=restore"},
		{http.MethodDelete, "/api/sync?action=backup&key=sync:backup:1"},
	}
	for _, op := range ops {
		rec, env := f.do(t, op.method, op.target, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status=%d, want 401", op.method, op.target, rec.Code)
		}
		if env["error"] != "credential required" {
			t.Errorf("%s %s: error=%v", op.method, op.target, env["error"])
		}
	}
}

func TestBackupCreate_NoDocument(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/sync?action=backup", f.token(t), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env["error"] != "no document to back up" {
		t.Fatalf("error=%v", env["error"])
	}
}

func TestBackupLifecycle(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)
	seedDocument(t, f)

	// 作成
	rec, env := f.do(t, http.MethodPost, "/api/sync?action=backup", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status=%d body=%s", rec.Code, rec.Body.String())
	}
	key, _ := env["key"].(string)
	if !strings.HasPrefix(key, "sync:backup:") {
		t.Fatalf("key=%q", key)
	}

	// 取得
	rec, env = f.do(t, http.MethodGet, "/api/sync?action=backup&key="+key, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status=%d body=%s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	if links, ok := data["links"].([]any); !ok || len(links) != 1 {
		t.Fatalf("backup links=%v", data["links"])
	}

	rec, env = f.do(t, http.MethodGet, "/api/sync?action=backup", token, nil)
	if rec.Code != http.StatusBadRequest || env["error"] != "key is required" {
		t.Fatalf("get without key: status=%d error=%v", rec.Code, env["error"])
	}

	rec, env = f.do(t, http.MethodGet, "/api/sync?action=backup&key=sync:backup:1", token, nil)
	if rec.Code != http.StatusNotFound || env["error"] != "backup not found" {
		t.Fatalf("get unknown: status=%d error=%v", rec.Code, env["error"])
	}

	// 削除
	rec, _ = f.do(t, http.MethodDelete, "/api/sync?action=backup&key="+key, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec, _ = f.do(t, http.MethodGet, "/api/sync?action=backup&key="+key, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status=%d", rec.Code)
	}
}

func TestBackupList(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)

	seedDocument(t, f)
	seedDocument(t, f)

	rec, env := f.do(t, http.MethodGet, "/api/sync?action=backups", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	items, ok := env["backups"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("backups=%v", env["backups"])
	}
	// Newest first; only the newest entry maps to the live document.
	first := items[0].(map[string]any)
	second := items[1].(map[string]any)
	if first["isCurrent"] != true || second["isCurrent"] != false {
		t.Fatalf("isCurrent flags: %v / %v", first["isCurrent"], second["isCurrent"])
	}
	if first["version"] != float64(2) || second["version"] != float64(1) {
		t.Fatalf("versions: %v / %v", first["version"], second["version"])
	}
}

func TestBackupDelete_RejectsActiveHistoryEntry(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)
	seedDocument(t, f)

	rec, env := f.do(t, http.MethodGet, "/api/sync?action=backups", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status=%d", rec.Code)
	}
	items := env["backups"].([]any)
	activeKey := items[0].(map[string]any)["key"].(string)

	rec, env = f.do(t, http.MethodDelete, "/api/sync?action=backup&key="+activeKey, token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env["error"] != "cannot delete the active history entry" {
		t.Fatalf("error=%v", env["error"])
	}
}

// ============================================================
// 復元
// ============================================================

func TestRestore(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)

	first := testDocument()
	first.Links[0].Title = "First"
	rec, _ := f.do(t, http.MethodPost, "/api/sync", token, writeBody(first, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first write: status=%d", rec.Code)
	}

	second := testDocument()
	second.Links[0].Title = "Second"
	rec, _ = f.do(t, http.MethodPost, "/api/sync", token, writeBody(second, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("second write: status=%d", rec.Code)
	}

	rec, env := f.do(t, http.MethodGet, "/api/sync?action=backups", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status=%d", rec.Code)
	}
	items := env["backups"].([]any)
	if len(items) != 2 {
		t.Fatalf("len(backups)=%d", len(items))
	}
	oldKey := items[1].(map[string]any)["key"].(string)

	rec, env = f.do(t, http.MethodPost, "/api/sync?action=restore", token, map[string]any{
		"key":      oldKey,
		"deviceId": "desktop-a1b2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rollback, _ := env["rollbackKey"].(string); !strings.HasPrefix(rollback, "sync:backup:") {
		t.Fatalf("rollbackKey=%v", env["rollbackKey"])
	}
	data := env["data"].(map[string]any)
	if title := data["links"].([]any)[0].(map[string]any)["title"]; title != "First" {
		t.Fatalf("restored title=%v", title)
	}
	if meta := data["meta"].(map[string]any); meta["version"] != float64(3) {
		t.Fatalf("restored version=%v, want 3", meta["version"])
	}

	// A subsequent read reflects the restored content.
	rec, env = f.do(t, http.MethodGet, "/api/sync", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read after restore: status=%d", rec.Code)
	}
	data = env["data"].(map[string]any)
	if title := data["links"].([]any)[0].(map[string]any)["title"]; title != "First" {
		t.Fatalf("title after restore=%v", title)
	}
}

func TestRestore_MissingBackup(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)
	seedDocument(t, f)

	rec, env := f.do(t, http.MethodPost, "/api/sync?action=restore", token, map[string]any{"key": "sync:backup:404"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env["error"] != "backup not found" {
		t.Fatalf("error=%v", env["error"])
	}

	rec, env = f.do(t, http.MethodPost, "/api/sync?action=restore", token, map[string]any{})
	if rec.Code != http.StatusBadRequest || env["error"] != "key is required" {
		t.Fatalf("missing key: status=%d error=%v", rec.Code, env["error"])
	}
}

// seedDocument writes one document through the surface so every test exercises
// the same path production clients use.
func seedDocument(t *testing.T, f *fixture) {
	t.Helper()
	rec, _ := f.do(t, http.MethodPost, "/api/sync", f.token(t), writeBody(testDocument(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("seed write: status=%d body=%s", rec.Code, rec.Body.String())
	}
}
