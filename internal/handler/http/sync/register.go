package sync

import (
	"net/http"
)

// Register mounts the sync surface on the given mux. Registering only the
// supported methods lets the mux answer unsupported ones with 405 and an
// Allow header for free.
func Register(mux *http.ServeMux, h *Handler) {
	mux.Handle("GET    /api/sync", getDispatcher{h})
	mux.Handle("POST   /api/sync", postDispatcher{h})
	mux.Handle("DELETE /api/sync", deleteDispatcher{h})
}

// getDispatcher routes GET requests by action.
type getDispatcher struct{ h *Handler }

func (d getDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "":
		d.h.handleRead(w, r)
	case "auth":
		d.h.handleAuthStatus(w, r)
	case "backup":
		d.h.handleBackupGet(w, r)
	case "backups":
		d.h.handleBackupList(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// postDispatcher routes POST requests by action.
type postDispatcher struct{ h *Handler }

func (d postDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "":
		d.h.handleWrite(w, r)
	case "login":
		d.h.handleLogin(w, r)
	case "backup":
		d.h.handleBackupCreate(w, r)
	case "restore":
		d.h.handleRestore(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// deleteDispatcher routes DELETE requests by action.
type deleteDispatcher struct{ h *Handler }

func (d deleteDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "backup":
		d.h.handleBackupDelete(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
