package handler

import (
	"net/http"

	"popsim/internal/model"
	"popsim/internal/service"

	"github.com/gorilla/mux"
)

// AgentHandler handles single-agent endpoints
type AgentHandler struct {
	agentSvc *service.AgentService
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agentSvc *service.AgentService) *AgentHandler {
	return &AgentHandler{agentSvc: agentSvc}
}

// Get handles GET /v1/agents/{id}
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, err := h.agentSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// Update handles PUT /v1/agents/{id}
func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var agent model.Agent
	if !decodeBody(w, r, &agent) {
		return
	}
	agent.ID = mux.Vars(r)["id"]
	updated, err := h.agentSvc.Update(r.Context(), &agent)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /v1/agents/{id}
func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.agentSvc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
