// Package http exposes the graph model over a JSON API and serves the
// embedded viewer page.
package http

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leesurelye/relations-visualization/internal/application"
	"github.com/leesurelye/relations-visualization/internal/graph"
)

//go:embed static
var staticFS embed.FS

type Handler struct {
	service *application.MapService
}

func NewRouter(service *application.MapService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api", func(api chi.Router) {
		api.Get("/graph", h.handleGraph)
		api.Get("/tenants", h.handleTenants)
		api.Get("/tags/statistics", h.handleTagStatistics)
		api.Get("/tags/{name}", h.handleTagDetails)
		api.Get("/relations/{id}", h.handleRelation)
		api.Get("/search", h.handleSearch)
		api.Get("/export", h.handleExport)
		api.Get("/layout", h.handleLayout)
		api.Post("/auth/login", h.handleLogin)
		api.With(h.requireAuth).Post("/auth/logout", h.handleLogout)
		api.With(h.requireAuth).Post("/datasets/reload", h.handleReload)
		api.With(h.requireAuth).Get("/imports", h.handleImports)
	})

	r.Get("/healthz", h.handleHealthz)

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/*", http.FileServer(http.FS(static)))

	return r
}

func (h *Handler) handleGraph(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	writeJSON(w, http.StatusOK, h.service.Graph(tenant))
}

func (h *Handler) handleTenants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tenants": h.service.Tenants()})
}

func (h *Handler) handleTagStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"statistics": h.service.TagStatistics()})
}

func (h *Handler) handleTagDetails(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	details, err := h.service.TagDetails(name)
	if err != nil {
		if errors.Is(err, graph.ErrTagNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) handleRelation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid relation id"})
		return
	}
	relation, err := h.service.RelationByID(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, relation)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	tagID := strings.TrimSpace(r.URL.Query().Get("tag_id"))
	if tagID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tag_id is required"})
		return
	}
	result, err := h.service.Search(tagID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Export(r.URL.Query().Get("tenant"))
	w.Header().Set("Content-Disposition", "attachment; filename=\"graph-"+snap.SnapshotID+".json\"")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Layout())
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	token, err := h.service.Login(r.Context(), req.Password, req.TokenName, 30*24*time.Hour)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearerToken(r)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reload(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	view := h.service.Graph("")
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"nodes":  len(view.Nodes),
		"edges":  len(view.Edges),
	})
}

func (h *Handler) handleImports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.service.ImportRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": runs})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.AuthenticateToken(r.Context(), bearerToken(r)); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
