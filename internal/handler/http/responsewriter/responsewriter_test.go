package responsewriter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWrap_DefaultsToOK(t *testing.T) {
	w := Wrap(httptest.NewRecorder())
	if w.StatusCode() != http.StatusOK {
		t.Fatalf("StatusCode=%d", w.StatusCode())
	}
	if w.BytesWritten() != 0 {
		t.Fatalf("BytesWritten=%d", w.BytesWritten())
	}
}

func TestWrap_RecordsStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	w.WriteHeader(http.StatusNotFound)
	n, err := w.Write([]byte("missing"))
	if err != nil || n != 7 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	if w.StatusCode() != http.StatusNotFound {
		t.Fatalf("StatusCode=%d", w.StatusCode())
	}
	if w.BytesWritten() != 7 {
		t.Fatalf("BytesWritten=%d", w.BytesWritten())
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("underlying code=%d", rec.Code)
	}
}

// A duplicate WriteHeader must not clobber the recorded status.
func TestWrap_IgnoresSecondWriteHeader(t *testing.T) {
	w := Wrap(httptest.NewRecorder())
	w.WriteHeader(http.StatusConflict)
	w.WriteHeader(http.StatusOK)

	if w.StatusCode() != http.StatusConflict {
		t.Fatalf("StatusCode=%d", w.StatusCode())
	}
}

func TestWrap_ImplicitHeaderOnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	if _, err := w.Write([]byte("body")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.StatusCode() != http.StatusOK || rec.Code != http.StatusOK {
		t.Fatalf("status=%d underlying=%d", w.StatusCode(), rec.Code)
	}
}

func TestWrap_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	if Wrap(rec).Unwrap() != rec {
		t.Fatal("Unwrap must return the wrapped writer")
	}
}
