package handler

import (
	"database/sql"
	"net/http"
)

// MetaHandler serves the unauthenticated API descriptor and liveness probe.
type MetaHandler struct {
	db *sql.DB
}

func NewMetaHandler(db *sql.DB) *MetaHandler {
	return &MetaHandler{db: db}
}

func (h *MetaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.root)
	mux.HandleFunc("/health", h.health)
}

func (h *MetaHandler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "ecko",
		"version": "1.0",
		"endpoints": []string{
			"POST /echoes/init-upload",
			"POST /echoes",
			"GET /echoes",
			"GET /echoes/random",
			"GET /echoes/{id}",
			"DELETE /echoes/{id}",
			"GET /users/me",
			"DELETE /users/me",
		},
	})
}

func (h *MetaHandler) health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		dbStatus = "unreachable"
	}
	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{
		"status":   "alive",
		"database": dbStatus,
	})
}
