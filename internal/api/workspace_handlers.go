package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type nameRequest struct {
	Name string `json:"name"`
}

// HandleListSkills returns every skill in the workspace
func (h *Handler) HandleListSkills(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]interface{}{
		"success": true,
		"skills":  h.ws.ListSkills(),
	})
}

// HandleCreateSkill scaffolds a new skill directory
func (h *Handler) HandleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if req.Name == "" {
		h.envelopeError(w, "name is required")
		return
	}
	if err := h.ws.CreateSkill(req.Name); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleDeleteSkill removes a skill directory
func (h *Handler) HandleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteSkill(chi.URLParam(r, "name")); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleListCommands returns every slash-command template
func (h *Handler) HandleListCommands(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]interface{}{
		"success":  true,
		"commands": h.ws.ListCommands(),
	})
}

// HandleCreateCommand scaffolds a new command template
func (h *Handler) HandleCreateCommand(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if req.Name == "" {
		h.envelopeError(w, "name is required")
		return
	}
	if err := h.ws.CreateCommand(req.Name); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleReadCommand returns one command template's content
func (h *Handler) HandleReadCommand(w http.ResponseWriter, r *http.Request) {
	content, err := h.ws.ReadCommand(chi.URLParam(r, "name"))
	if err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"success": true,
		"content": content,
	})
}

// HandleUpdateCommand replaces a command template's content
func (h *Handler) HandleUpdateCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if err := h.ws.UpdateCommand(chi.URLParam(r, "name"), req.Content); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleDeleteCommand removes a command template
func (h *Handler) HandleDeleteCommand(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteCommand(chi.URLParam(r, "name")); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleListDroids returns every droid definition
func (h *Handler) HandleListDroids(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]interface{}{
		"success": true,
		"droids":  h.ws.ListDroids(),
	})
}

// HandleCreateDroid scaffolds a new droid definition
func (h *Handler) HandleCreateDroid(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if req.Name == "" {
		h.envelopeError(w, "name is required")
		return
	}
	if err := h.ws.CreateDroid(req.Name); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleDeleteDroid removes a droid definition
func (h *Handler) HandleDeleteDroid(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteDroid(chi.URLParam(r, "name")); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleListMCPServers returns every registered MCP server
func (h *Handler) HandleListMCPServers(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]interface{}{
		"success": true,
		"servers": h.ws.ListMCPServers(),
	})
}

// HandleAddMCPServer registers an MCP server in mcp.json
func (h *Handler) HandleAddMCPServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string   `json:"name"`
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if req.Name == "" {
		h.envelopeError(w, "name is required")
		return
	}
	if err := h.ws.AddMCPServer(req.Name, req.Command, req.Args); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleUpdateMCPServer replaces one server's config object
func (h *Handler) HandleUpdateMCPServer(w http.ResponseWriter, r *http.Request) {
	var cfg map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.envelopeError(w, "invalid JSON request")
		return
	}
	if err := h.ws.UpdateMCPServer(chi.URLParam(r, "name"), cfg); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}

// HandleRemoveMCPServer deletes one server entry
func (h *Handler) HandleRemoveMCPServer(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.RemoveMCPServer(chi.URLParam(r, "name")); err != nil {
		h.envelopeError(w, err.Error())
		return
	}
	h.envelopeOK(w, "")
}
