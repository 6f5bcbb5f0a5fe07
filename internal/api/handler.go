package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"droidkey/config"
	"droidkey/internal/engine"
	"droidkey/internal/workspace"

	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP API requests
type Handler struct {
	engine *engine.Engine
	ws     *workspace.Manager
	cfg    *config.Config
}

// NewHandler creates a new Handler
func NewHandler(eng *engine.Engine, ws *workspace.Manager, cfg *config.Config) *Handler {
	return &Handler{engine: eng, ws: ws, cfg: cfg}
}

// dataFiles is the whitelist of store files servable under /data
var dataFiles = map[string]bool{
	"keys.enc":       true,
	"current":        true,
	"list_cache.b64": true,
}

type keyRequest struct {
	Key string `json:"key"`
}

type indexRequest struct {
	Index int `json:"index"`
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}

	if _, err := h.engine.List(); err != nil {
		status["status"] = "degraded"
		status["store"] = "unreadable"
	} else {
		status["store"] = "ok"
	}

	h.jsonResponse(w, status)
}

// HandleListKeys returns every stored key zipped with the active marker
// and cached usage
func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.List()
	if err != nil {
		h.envelopeError(w, err.Error())
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"success": true,
		"keys":    entries,
	})
}

// HandleAddKey appends a key to the store
func (h *Handler) HandleAddKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if req.Key == "" {
		h.envelopeError(w, "key is required")
		return
	}

	msg, err := h.engine.Add(r.Context(), req.Key)
	if err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, msg)
}

// HandleRemoveKey deletes the key at a 1-based index
func (h *Handler) HandleRemoveKey(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if req.Index == 0 {
		h.envelopeError(w, "index is required")
		return
	}

	msg, err := h.engine.Remove(req.Index)
	if err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, msg)
}

// HandleUseKey moves the active pointer to a 1-based index
func (h *Handler) HandleUseKey(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if req.Index == 0 {
		h.envelopeError(w, "index is required")
		return
	}

	msg, err := h.engine.Use(req.Index)
	if err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, msg)
}

// HandleRefresh rebuilds the usage cache for every stored key
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Refresh(r.Context()); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleDataFile serves the raw store files for the browser UI. Only the
// whitelisted names are reachable; a missing usage cache is served as an
// empty 200 so a fresh install stays quiet.
func (h *Handler) HandleDataFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if !dataFiles[name] {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/octet-stream")

	data, err := os.ReadFile(filepath.Join(h.cfg.Store.DataDir, name))
	if err != nil {
		if os.IsNotExist(err) && name == "list_cache.b64" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// envelopeOK writes the {success, message} envelope shared by every
// mutating endpoint
func (h *Handler) envelopeOK(w http.ResponseWriter, message string) {
	resp := map[string]interface{}{"success": true}
	if message != "" {
		resp["message"] = message
	}
	h.jsonResponse(w, resp)
}

// envelopeError reports a failed operation. The envelope carries the
// outcome; the HTTP status stays 200 so browser clients branch on
// success, not on status codes.
func (h *Handler) envelopeError(w http.ResponseWriter, message string) {
	h.jsonResponse(w, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
