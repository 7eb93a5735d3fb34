// Package api provides the HTTP API for observing a running simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/talgya/contagion-sim/internal/contagion"
	"github.com/talgya/contagion-sim/internal/engine"
	"github.com/talgya/contagion-sim/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; history and events fall back to memory
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/census", s.handleCensus)
	mux.HandleFunc("/api/v1/census/history", s.handleCensusHistory)
	mux.HandleFunc("/api/v1/sites", s.handleSites)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgent)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/seed", s.adminOnly(s.handleSeed))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CONTAGION_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	clock := s.Sim.Now()
	status := map[string]any{
		"run":        s.Sim.RunID,
		"name":       s.Sim.Name,
		"tick":       clock.Tick,
		"day":        clock.Day,
		"hour":       clock.Hour,
		"sim_time":   clock.SimTime(s.Sim.Calendar),
		"population": s.Sim.Population.Len(),
		"sites":      s.Sim.Roster.Len(),
		"seed":       s.Sim.Entropy.Seed(),
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleCensus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Census())
}

func (s *Server) handleCensusHistory(w http.ResponseWriter, r *http.Request) {
	fromTick := uint64(0)
	toTick := uint64(1<<63 - 1) // Max int64; the SQLite driver rejects uint64 with the high bit set.
	limit := 100

	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 64); err == nil {
			fromTick = v
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if v, err := strconv.ParseUint(t, 10, 64); err == nil {
			toTick = v
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 5000 {
			limit = v
		}
	}

	out := []contagion.Census{}
	if s.DB != nil {
		rows, err := s.DB.LoadCensusHistory(s.Sim.RunID, fromTick, toTick, limit)
		if err != nil {
			slog.Error("census history query failed", "error", err)
		}
		out = append(out, rows...)
	}

	// Ticks after the last save live only in memory.
	for _, c := range s.Sim.CensusHistory() {
		if len(out) == limit {
			break
		}
		if c.Tick < fromTick || c.Tick > toTick {
			continue
		}
		if n := len(out); n > 0 && c.Tick <= out[n-1].Tick {
			continue
		}
		out = append(out, c)
	}
	writeJSON(w, out)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	type siteSummary struct {
		Activity     string  `json:"activity"`
		Index        int     `json:"index"`
		Capacity     int     `json:"capacity"`
		Transmission float64 `json:"transmission"`
		Occupied     int     `json:"occupied"`
	}

	label := r.URL.Query().Get("activity")
	var out []siteSummary
	for _, site := range s.Sim.Roster.All() {
		if label != "" && site.Label != label {
			continue
		}
		out = append(out, siteSummary{
			Activity:     site.Label,
			Index:        site.Ref.Index,
			Capacity:     site.Capacity,
			Transmission: site.Transmission,
			Occupied:     site.Occupied,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	events := s.Sim.RecentEvents(limit)
	if len(events) < limit && s.DB != nil {
		stored, err := s.DB.RecentEvents(s.Sim.RunID, limit-len(events))
		if err != nil {
			slog.Error("events query failed", "error", err)
		}
		// Stored events are newest first; memory holds the newer ones.
		for i, j := 0, len(stored)-1; i < j; i, j = i+1, j-1 {
			stored[i], stored[j] = stored[j], stored[i]
		}
		events = append(stored, events...)
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

// handleAgent serves GET /api/v1/agent/:id: state and weekly calendar.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	id, err := strconv.Atoi(idStr)
	if err != nil || id < 0 || id >= s.Sim.Population.Len() {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	snap, ok := s.Sim.Agent(id)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Count int    `json:"count"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	picked, err := s.Sim.Seed(req.Count, contagion.StateID(req.State))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"state": req.State, "agents": picked})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
