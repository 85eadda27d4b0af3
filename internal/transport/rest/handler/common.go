package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"popsim/internal/allocation"
	"popsim/internal/generation"
	"popsim/internal/llm"
	"popsim/internal/model"
	"popsim/internal/repository"
	"popsim/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError maps service errors onto status codes
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoClusters),
		errors.Is(err, service.ErrNoAgents),
		errors.Is(err, allocation.ErrNoClusters),
		errors.Is(err, generation.ErrNoAgents):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case llm.IsKind(err, llm.KindUnreachable), llm.IsKind(err, llm.KindTimeout), llm.IsKind(err, llm.KindRateLimited):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
