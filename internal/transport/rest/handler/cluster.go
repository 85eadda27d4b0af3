package handler

import (
	"net/http"

	"popsim/internal/model"
	"popsim/internal/service"

	"github.com/gorilla/mux"
)

// ClusterHandler handles cluster and agent endpoints
type ClusterHandler struct {
	clusterSvc *service.ClusterService
	agentSvc   *service.AgentService
}

// NewClusterHandler creates a new cluster handler
func NewClusterHandler(clusterSvc *service.ClusterService, agentSvc *service.AgentService) *ClusterHandler {
	return &ClusterHandler{
		clusterSvc: clusterSvc,
		agentSvc:   agentSvc,
	}
}

// ClusterRequest is the request body for creating or updating a cluster
type ClusterRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Create handles POST /v1/zones/{id}/clusters
func (h *ClusterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ClusterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cluster := &model.Cluster{
		ZoneID:      mux.Vars(r)["id"],
		Name:        req.Name,
		Description: req.Description,
		Weight:      req.Weight,
	}
	if err := h.clusterSvc.Create(r.Context(), cluster); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cluster)
}

// ListByZone handles GET /v1/zones/{id}/clusters
func (h *ClusterHandler) ListByZone(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.clusterSvc.ListByZone(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clusters": clusters})
}

// Normalize handles POST /v1/zones/{id}/clusters/normalize
func (h *ClusterHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.clusterSvc.NormalizeWeights(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clusters": clusters})
}

// Get handles GET /v1/clusters/{id}
func (h *ClusterHandler) Get(w http.ResponseWriter, r *http.Request) {
	cluster, err := h.clusterSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cluster)
}

// Update handles PUT /v1/clusters/{id}
func (h *ClusterHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ClusterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cluster, err := h.clusterSvc.Update(r.Context(), &model.Cluster{
		ID:          mux.Vars(r)["id"],
		Name:        req.Name,
		Description: req.Description,
		Weight:      req.Weight,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cluster)
}

// Delete handles DELETE /v1/clusters/{id}
func (h *ClusterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.clusterSvc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Agents handles GET /v1/clusters/{id}/agents
func (h *ClusterHandler) Agents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agentSvc.ListByCluster(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": agents})
}

// GenerateAgentsRequest is the request body for agent generation
type GenerateAgentsRequest struct {
	Count       int     `json:"count"`
	Temperature float64 `json:"temperature"`
}

// GenerateAgents handles POST /v1/clusters/{id}/agents/generate. Generation
// runs in the background; progress is available under /v1/runs/{runId}.
func (h *ClusterHandler) GenerateAgents(w http.ResponseWriter, r *http.Request) {
	var req GenerateAgentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clusterID := mux.Vars(r)["id"]
	if _, err := h.clusterSvc.Get(r.Context(), clusterID); err != nil {
		writeServiceError(w, err)
		return
	}
	runID, err := h.agentSvc.StartGenerate(service.GenerateAgentsRequest{
		ClusterID:   clusterID,
		Count:       req.Count,
		Temperature: req.Temperature,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}
