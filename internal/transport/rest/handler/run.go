package handler

import (
	"net/http"

	"popsim/internal/service"

	"github.com/gorilla/mux"
)

// RunHandler handles simulation, poll and run status endpoints
type RunHandler struct {
	simulationSvc *service.SimulationService
	pollSvc       *service.PollService
	runner        *service.Runner
}

// NewRunHandler creates a new run handler
func NewRunHandler(simulationSvc *service.SimulationService, pollSvc *service.PollService, runner *service.Runner) *RunHandler {
	return &RunHandler{
		simulationSvc: simulationSvc,
		pollSvc:       pollSvc,
		runner:        runner,
	}
}

// StartSimulation handles POST /v1/simulations
func (h *RunHandler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	var req service.SimulationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	runID, err := h.simulationSvc.Start(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// ListSimulations handles GET /v1/simulations
func (h *RunHandler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	sims, err := h.simulationSvc.List(r.Context(), listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"simulations": sims})
}

// GetSimulation handles GET /v1/simulations/{id}, the full JSON export
func (h *RunHandler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	sim, err := h.simulationSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// SimulationRows handles GET /v1/simulations/{id}/rows
func (h *RunHandler) SimulationRows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.simulationSvc.Rows(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

// SimulationStats handles GET /v1/simulations/{id}/stats
func (h *RunHandler) SimulationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.simulationSvc.Stats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DeleteSimulation handles DELETE /v1/simulations/{id}
func (h *RunHandler) DeleteSimulation(w http.ResponseWriter, r *http.Request) {
	if err := h.simulationSvc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartPoll handles POST /v1/polls
func (h *RunHandler) StartPoll(w http.ResponseWriter, r *http.Request) {
	var req service.PollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	runID, err := h.pollSvc.Start(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// ListPolls handles GET /v1/polls
func (h *RunHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := h.pollSvc.List(r.Context(), listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"polls": polls})
}

// GetPoll handles GET /v1/polls/{id}
func (h *RunHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	res, err := h.pollSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PollRows handles GET /v1/polls/{id}/rows
func (h *RunHandler) PollRows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.pollSvc.Rows(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

// DeletePoll handles DELETE /v1/polls/{id}
func (h *RunHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	if err := h.pollSvc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /v1/runs/{id}
func (h *RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.runner.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Recent handles GET /v1/runs
func (h *RunHandler) Recent(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runner.Recent(r.Context(), listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
