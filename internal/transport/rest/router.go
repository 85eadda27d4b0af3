package rest

import (
	"net/http"
	"os"

	"popsim/internal/service"
	"popsim/internal/transport/rest/handler"
	"popsim/internal/transport/rest/middleware"
	"popsim/internal/transport/ws"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Container holds all dependencies for the router
type Container struct {
	ZoneService       *service.ZoneService
	ClusterService    *service.ClusterService
	AgentService      *service.AgentService
	SimulationService *service.SimulationService
	PollService       *service.PollService
	Runner            *service.Runner
	WSHub             *ws.Hub
	Logger            *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	zoneHandler := handler.NewZoneHandler(c.ZoneService)
	clusterHandler := handler.NewClusterHandler(c.ClusterService, c.AgentService)
	agentHandler := handler.NewAgentHandler(c.AgentService)
	runHandler := handler.NewRunHandler(c.SimulationService, c.PollService, c.Runner)
	wsHandler := ws.NewHandler(c.WSHub, c.Runner, c.Logger)

	requests := middleware.NewRequests(c.Logger)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)
	r.Use(requests.Identify, requests.Recover, requests.Log)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/zones", zoneHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/zones", zoneHandler.List).Methods("GET", "OPTIONS")
	v1.HandleFunc("/zones/{id}", zoneHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/zones/{id}", zoneHandler.Update).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/zones/{id}", zoneHandler.Delete).Methods("DELETE", "OPTIONS")
	v1.HandleFunc("/zones/{id}/demographics", zoneHandler.AddDemographic).Methods("POST", "OPTIONS")
	v1.HandleFunc("/zones/{id}/demographics", zoneHandler.Demographics).Methods("GET", "OPTIONS")
	v1.HandleFunc("/demographics/{id}", zoneHandler.DeleteDemographic).Methods("DELETE", "OPTIONS")

	v1.HandleFunc("/zones/{id}/clusters", clusterHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/zones/{id}/clusters", clusterHandler.ListByZone).Methods("GET", "OPTIONS")
	v1.HandleFunc("/zones/{id}/clusters/normalize", clusterHandler.Normalize).Methods("POST", "OPTIONS")
	v1.HandleFunc("/clusters/{id}", clusterHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/clusters/{id}", clusterHandler.Update).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/clusters/{id}", clusterHandler.Delete).Methods("DELETE", "OPTIONS")
	v1.HandleFunc("/clusters/{id}/agents", clusterHandler.Agents).Methods("GET", "OPTIONS")
	v1.HandleFunc("/clusters/{id}/agents/generate", clusterHandler.GenerateAgents).Methods("POST", "OPTIONS")

	v1.HandleFunc("/agents/{id}", agentHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/agents/{id}", agentHandler.Update).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/agents/{id}", agentHandler.Delete).Methods("DELETE", "OPTIONS")

	v1.HandleFunc("/simulations", runHandler.StartSimulation).Methods("POST", "OPTIONS")
	v1.HandleFunc("/simulations", runHandler.ListSimulations).Methods("GET", "OPTIONS")
	v1.HandleFunc("/simulations/{id}", runHandler.GetSimulation).Methods("GET", "OPTIONS")
	v1.HandleFunc("/simulations/{id}", runHandler.DeleteSimulation).Methods("DELETE", "OPTIONS")
	v1.HandleFunc("/simulations/{id}/rows", runHandler.SimulationRows).Methods("GET", "OPTIONS")
	v1.HandleFunc("/simulations/{id}/stats", runHandler.SimulationStats).Methods("GET", "OPTIONS")

	v1.HandleFunc("/polls", runHandler.StartPoll).Methods("POST", "OPTIONS")
	v1.HandleFunc("/polls", runHandler.ListPolls).Methods("GET", "OPTIONS")
	v1.HandleFunc("/polls/{id}", runHandler.GetPoll).Methods("GET", "OPTIONS")
	v1.HandleFunc("/polls/{id}", runHandler.DeletePoll).Methods("DELETE", "OPTIONS")
	v1.HandleFunc("/polls/{id}/rows", runHandler.PollRows).Methods("GET", "OPTIONS")

	v1.HandleFunc("/runs", runHandler.Recent).Methods("GET", "OPTIONS")
	v1.HandleFunc("/runs/{id}", runHandler.Status).Methods("GET", "OPTIONS")

	v1.HandleFunc("/ws/runs/{id}", wsHandler.RunWS).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, " + middleware.RequestIDHeader
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
