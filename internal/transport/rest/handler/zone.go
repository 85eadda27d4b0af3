package handler

import (
	"net/http"

	"popsim/internal/model"
	"popsim/internal/service"

	"github.com/gorilla/mux"
)

// ZoneHandler handles zone and demographic endpoints
type ZoneHandler struct {
	zoneSvc *service.ZoneService
}

// NewZoneHandler creates a new zone handler
func NewZoneHandler(zoneSvc *service.ZoneService) *ZoneHandler {
	return &ZoneHandler{zoneSvc: zoneSvc}
}

// ZoneRequest is the request body for creating or updating a zone
type ZoneRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /v1/zones
func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ZoneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	zone := &model.Zone{Name: req.Name, Description: req.Description}
	if err := h.zoneSvc.Create(r.Context(), zone); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, zone)
}

// List handles GET /v1/zones
func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	zones, err := h.zoneSvc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"zones": zones})
}

// Get handles GET /v1/zones/{id}
func (h *ZoneHandler) Get(w http.ResponseWriter, r *http.Request) {
	zone, err := h.zoneSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// Update handles PUT /v1/zones/{id}
func (h *ZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ZoneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	zone, err := h.zoneSvc.Update(r.Context(), &model.Zone{
		ID:          mux.Vars(r)["id"],
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// Delete handles DELETE /v1/zones/{id}
func (h *ZoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.zoneSvc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DemographicRequest is the request body for adding a demographic bucket
type DemographicRequest struct {
	Kind   model.DemographicKind `json:"kind"`
	Label  string                `json:"label"`
	Weight float64               `json:"weight"`
}

// AddDemographic handles POST /v1/zones/{id}/demographics
func (h *ZoneHandler) AddDemographic(w http.ResponseWriter, r *http.Request) {
	var req DemographicRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d := &model.Demographic{
		ZoneID: mux.Vars(r)["id"],
		Kind:   req.Kind,
		Label:  req.Label,
		Weight: req.Weight,
	}
	if err := h.zoneSvc.AddDemographic(r.Context(), d); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Demographics handles GET /v1/zones/{id}/demographics
func (h *ZoneHandler) Demographics(w http.ResponseWriter, r *http.Request) {
	list, err := h.zoneSvc.Demographics(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"demographics": list})
}

// DeleteDemographic handles DELETE /v1/demographics/{id}
func (h *ZoneHandler) DeleteDemographic(w http.ResponseWriter, r *http.Request) {
	if err := h.zoneSvc.DeleteDemographic(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
