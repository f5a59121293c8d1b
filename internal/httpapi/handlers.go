package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/rider-dispatch/internal/directory"
	"github.com/example/rider-dispatch/internal/gateway"
	"github.com/example/rider-dispatch/internal/geo"
	"github.com/example/rider-dispatch/internal/models"
)

// Server exposes the websocket channel plus the small REST surface the
// external CRUD layers call into: a nearby-rider preview and the
// availability toggle.
type Server struct {
	logger    *slog.Logger
	gateway   *gateway.Gateway
	registry  geo.Registry
	directory directory.Directory

	radiusKm      float64
	maxCandidates int

	mux      *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(logger *slog.Logger, gw *gateway.Gateway, reg geo.Registry, dir directory.Directory, radiusKm float64, maxCandidates int) *Server {
	s := &Server{
		logger:        logger,
		gateway:       gw,
		registry:      reg,
		directory:     dir,
		radiusKm:      radiusKm,
		maxCandidates: maxCandidates,
		mux:           mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ws", s.handleWS).Methods("GET")
	s.mux.HandleFunc("/api/v1/riders/nearby", s.handleNearbyRiders).Methods("POST")
	s.mux.HandleFunc("/api/v1/riders/{rider_id}/availability", s.handleAvailability).Methods("PATCH")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.gateway.ServeConn(r.Context(), conn)
}

type nearbyRequest struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	RadiusKm *float64 `json:"radius_km"`
	Limit    *int     `json:"limit"`
}

// handleNearbyRiders is the synchronous preview of rider availability used
// outside the real-time flow.
func (s *Server) handleNearbyRiders(w http.ResponseWriter, r *http.Request) {
	var req nearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	radius := s.radiusKm
	if req.RadiusKm != nil && *req.RadiusKm > 0 {
		radius = *req.RadiusKm
	}
	limit := s.maxCandidates
	if req.Limit != nil && *req.Limit > 0 {
		limit = *req.Limit
	}

	ids := s.registry.Nearby(r.Context(), req.Lng, req.Lat, radius, limit)
	infos := s.directory.GetAll(r.Context(), ids)
	riders := make([]models.Rider, 0, len(infos))
	for _, info := range infos {
		riders = append(riders, models.Rider{ID: info.ID, Name: info.Name, Lng: info.Lng, Lat: info.Lat})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"riders": riders})
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

// handleAvailability is called by the external account layer when a rider
// toggles delivering off. Toggling on is a no-op here: the rider becomes
// visible again with its next location broadcast.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	riderID := mux.Vars(r)["rider_id"]
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Available == nil {
		http.Error(w, "available is required", http.StatusBadRequest)
		return
	}
	if !*req.Available {
		if err := s.registry.Remove(r.Context(), riderID); err != nil {
			s.logger.Error("availability remove failed", "rider_id", riderID, "error", err)
			http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := s.directory.Delete(r.Context(), riderID); err != nil {
			s.logger.Error("directory delete failed", "rider_id", riderID, "error", err)
		}
		s.logger.Info("rider availability disabled", "rider_id", riderID)
	}
	w.WriteHeader(http.StatusNoContent)
}
