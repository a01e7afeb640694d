// Package api provides the HTTP API for observing and steering the economy.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/realm-economy/internal/economy"
	"github.com/talgya/realm-economy/internal/engine"
	"github.com/talgya/realm-economy/internal/persistence"
	"github.com/talgya/realm-economy/internal/persistence/snapshot"
)

// Server serves the economy over HTTP.
type Server struct {
	Sim          *engine.Simulation
	Eng          *engine.Engine
	DB           *persistence.DB // optional; enables history beyond memory and saves
	Hub          *Hub            // optional; enables /api/v1/stream
	Port         int
	AdminKey     string // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey     string // Token for the stream endpoint. Empty = streaming disabled.
	SnapshotPath string // zstd snapshot file used by the snapshot endpoint

	// Limiter throttles admin POSTs per client. Nil uses a default.
	Limiter *RateLimiter

	srv *http.Server
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	if s.Limiter == nil {
		s.Limiter = NewRateLimiter(5, 20)
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.adminOnly(s.Limiter.Middleware(h))
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/turn", s.handleTurn)
	mux.HandleFunc("GET /api/v1/states", s.handleStates)
	mux.HandleFunc("GET /api/v1/state/{id}", s.handleState)
	mux.HandleFunc("GET /api/v1/state/{id}/resources", s.handleVisibleResources)
	mux.HandleFunc("GET /api/v1/state/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/deals", s.handleDeals)
	mux.HandleFunc("GET /api/v1/deposit/{tile}", s.handleDeposit)
	mux.HandleFunc("GET /api/v1/revealed", s.handleRevealed)
	mux.HandleFunc("GET /api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/turn", admin(s.handleAdvance))
	mux.HandleFunc("POST /api/v1/build", admin(s.handleBuild))
	mux.HandleFunc("POST /api/v1/tech", admin(s.handleTech))
	mux.HandleFunc("POST /api/v1/deals", admin(s.handleCreateDeal))
	mux.HandleFunc("POST /api/v1/deals/cancel", admin(s.handleCancelDeal))
	mux.HandleFunc("POST /api/v1/spend", admin(s.handleSpend))
	mux.HandleFunc("POST /api/v1/recruit", admin(s.handleRecruit))
	mux.HandleFunc("POST /api/v1/snapshot", admin(s.handleSnapshot))
	mux.HandleFunc("POST /api/v1/reset", admin(s.handleReset))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "stream", s.Hub != nil && s.RelayKey != "")

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.Limiter.Cleanup(time.Hour)
		}
	}()

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// PublishTurn pushes a turn summary to stream clients. It is meant to be
// installed as the simulation's OnTurnProcessed hook.
func (s *Server) PublishTurn(summary economy.TurnSummary) {
	if s.Hub == nil {
		return
	}
	s.Hub.Publish(Message{Type: "turn", Turn: summary.Turn, Payload: summary})
}

func (s *Server) publishAction(kind string, payload any) {
	if s.Hub == nil {
		return
	}
	s.Hub.Publish(Message{Type: kind, Turn: s.Sim.CurrentTurn(), Payload: payload})
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ECONSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if bearerToken(r) != s.AdminKey {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	clients := 0
	if s.Hub != nil {
		clients = s.Hub.Clients()
	}
	writeJSON(w, map[string]any{
		"name":           "Realm Economy",
		"turn":           st.Turn,
		"seed":           st.Seed,
		"world_seed":     s.Sim.World.Seed(),
		"tiles":          st.Tiles,
		"states":         st.States,
		"deposits":       st.Deposits,
		"deals":          st.Deals,
		"revealed":       st.Revealed,
		"speed":          s.Eng.Speed(),
		"running":        s.Eng.Running(),
		"stream_clients": clients,
	})
}

// handleTurn returns the summary of the most recent turn.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.LastSummary())
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	type stateEntry struct {
		ID      int                   `json:"id"`
		Name    string                `json:"name"`
		Capital int                   `json:"capital"`
		Tiles   int                   `json:"tiles"`
		Summary *economy.StateSummary `json:"summary,omitempty"`
	}

	summary := s.Sim.Summary()
	result := make([]stateEntry, 0, len(summary.States))
	for _, st := range s.Sim.World.States() {
		if st.Removed {
			continue
		}
		e := stateEntry{
			ID:      st.ID,
			Name:    st.Name,
			Capital: st.Capital,
			Tiles:   len(s.Sim.World.OwnedTiles(st.ID)),
		}
		if sum, ok := summary.States[st.ID]; ok {
			e.Summary = &sum
		}
		result = append(result, e)
	}
	writeJSON(w, result)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	sum, found := s.Sim.StateSummary(id)
	if !found {
		http.Error(w, "state not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sum)
}

// handleVisibleResources applies the state's fog of war to the deposit map.
func (s *Server) handleVisibleResources(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	if _, found := s.Sim.StateSummary(id); !found {
		http.Error(w, "state not found", http.StatusNotFound)
		return
	}
	deposits := s.Sim.VisibleResources(id)
	if deposits == nil {
		deposits = []economy.VisibleDeposit{}
	}
	writeJSON(w, deposits)
}

// handleHistory returns per-turn yields for charting, oldest first. Saved
// rows come from the database and are topped up with unsaved turns.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	limit := queryLimit(r, 100, 1000)

	var history []engine.TurnStat
	if s.DB != nil {
		rows, err := s.DB.TurnHistory(id, limit)
		if err != nil {
			slog.Error("turn history query failed", "state", id, "error", err)
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		history = rows
	}
	lastSaved := 0
	if n := len(history); n > 0 {
		lastSaved = history[n-1].Turn
	}
	for _, st := range s.Sim.History(id) {
		if st.Turn > lastSaved {
			history = append(history, st)
		}
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	if history == nil {
		history = []engine.TurnStat{}
	}
	writeJSON(w, history)
}

func (s *Server) handleDeals(w http.ResponseWriter, r *http.Request) {
	deals := s.Sim.ActiveDeals()
	if stateParam := r.URL.Query().Get("state"); stateParam != "" {
		id, err := strconv.Atoi(stateParam)
		if err != nil {
			http.Error(w, "invalid state id", http.StatusBadRequest)
			return
		}
		var filtered []economy.TradeDeal
		for _, d := range deals {
			if d.From == id || d.To == id {
				filtered = append(filtered, d)
			}
		}
		deals = filtered
	}
	if deals == nil {
		deals = []economy.TradeDeal{}
	}
	writeJSON(w, deals)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	tile, ok := pathInt(w, r, "tile")
	if !ok {
		return
	}
	d, found := s.Sim.Deposit(tile)
	if !found {
		http.Error(w, "no deposit on tile", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"tile_id":        tile,
		"resource_id":    d.ResourceID,
		"improved":       d.Improved,
		"improvement_id": d.ImprovementID,
	})
}

func (s *Server) handleRevealed(w http.ResponseWriter, r *http.Request) {
	revealed := s.Sim.Revealed()
	if revealed == nil {
		revealed = []string{}
	}
	writeJSON(w, revealed)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Catalog())
}

// handleMap returns every tile for a hex map renderer. The grid never changes
// after generation, so no simulation lock is taken.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	type tileEntry struct {
		ID     int    `json:"id"`
		Q      int    `json:"q"`
		R      int    `json:"r"`
		Height uint8  `json:"height"`
		Biome  string `json:"biome"`
		State  int    `json:"state,omitempty"`
		Burg   int    `json:"burg,omitempty"`
	}

	g := s.Sim.World
	tiles := make([]tileEntry, 0, g.TileCount())
	for id := 0; id < g.TileCount(); id++ {
		t, _ := g.Tile(id)
		tiles = append(tiles, tileEntry{
			ID:     t.ID,
			Q:      t.Coord.Q,
			R:      t.Coord.R,
			Height: t.Height,
			Biome:  t.Biome.String(),
			State:  t.State,
			Burg:   t.Burg,
		})
	}
	writeJSON(w, map[string]any{
		"radius": g.Radius(),
		"tiles":  tiles,
		"states": g.States(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)

	events := s.Sim.RecentEvents(0)
	// After a restart the in-memory log is empty; fall back to saved events.
	if len(events) == 0 && s.DB != nil {
		saved, err := s.DB.RecentEvents(500)
		if err != nil {
			slog.Error("event query failed", "error", err)
		} else {
			events = saved
		}
	}

	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

// handleStream upgrades to a websocket that receives turn summaries and
// admin actions. The relay key may be passed as a bearer token or a token
// query parameter (browsers cannot set headers on websocket requests).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil || s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token != s.RelayKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.Hub.Clients() >= maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	s.Hub.serve(w, r)
}

// handleAdvance processes one turn immediately, independent of the scheduler.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	summary := s.Sim.ProcessTurn()
	writeJSON(w, summary)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TileID        *int   `json:"tile_id"`
		ImprovementID string `json:"improvement_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.TileID == nil || req.ImprovementID == "" {
		http.Error(w, "tile_id and improvement_id required", http.StatusBadRequest)
		return
	}
	s.writeResult(w, "build", s.Sim.Build(*req.TileID, req.ImprovementID))
}

func (s *Server) handleTech(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StateID int    `json:"state_id"`
		TechID  string `json:"tech_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.StateID == 0 || req.TechID == "" {
		http.Error(w, "state_id and tech_id required", http.StatusBadRequest)
		return
	}
	s.writeResult(w, "tech", s.Sim.UnlockTech(req.StateID, req.TechID))
}

func (s *Server) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From       int    `json:"from_state"`
		To         int    `json:"to_state"`
		ResourceID string `json:"resource_id"`
		Duration   *int   `json:"duration,omitempty"` // omitted = perpetual
	}
	if !decode(w, r, &req) {
		return
	}
	if req.From == 0 || req.To == 0 || req.ResourceID == "" {
		http.Error(w, "from_state, to_state and resource_id required", http.StatusBadRequest)
		return
	}
	res := s.Sim.CreateTradeDeal(req.From, req.To, req.ResourceID, req.Duration)
	if !res.Success {
		writeJSONStatus(w, http.StatusUnprocessableEntity, res)
		return
	}
	s.publishAction("trade", res)
	writeJSON(w, res)
}

func (s *Server) handleCancelDeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DealID string `json:"deal_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.DealID == "" {
		http.Error(w, "deal_id required", http.StatusBadRequest)
		return
	}
	s.writeResult(w, "trade", s.Sim.CancelTradeDeal(req.DealID))
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StateID int            `json:"state_id"`
		Costs   map[string]int `json:"costs"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.StateID == 0 || len(req.Costs) == 0 {
		http.Error(w, "state_id and costs required", http.StatusBadRequest)
		return
	}
	s.writeResult(w, "spend", s.Sim.SpendStrategic(req.StateID, req.Costs))
}

func (s *Server) handleRecruit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StateID int    `json:"state_id"`
		UnitID  string `json:"unit_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.StateID == 0 || req.UnitID == "" {
		http.Error(w, "state_id and unit_id required", http.StatusBadRequest)
		return
	}
	s.writeResult(w, "military", s.Sim.RecruitUnit(req.StateID, req.UnitID))
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	} else if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleSnapshot saves to the database, exports a snapshot file, or restores
// from an inline snapshot or the snapshot file.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action   string          `json:"action"` // "save", "export", "restore"
		Snapshot json.RawMessage `json:"snapshot,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}

	switch req.Action {
	case "save":
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		if err := s.DB.SaveSimulation(s.Sim); err != nil {
			slog.Error("snapshot save failed", "error", err)
			http.Error(w, "save failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"turn": s.Sim.CurrentTurn(), "message": "economy saved"})

	case "export":
		if s.SnapshotPath == "" {
			http.Error(w, "no snapshot path configured", http.StatusServiceUnavailable)
			return
		}
		h, err := snapshot.Save(s.SnapshotPath, s.Sim)
		if err != nil {
			slog.Error("snapshot export failed", "error", err)
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"turn": h.Turn, "message": "snapshot exported"})

	case "restore":
		var (
			desc string
			err  error
		)
		switch {
		case len(req.Snapshot) > 0:
			desc, err = s.Sim.Restore(req.Snapshot)
		case s.SnapshotPath != "":
			var h snapshot.Header
			h, err = snapshot.Restore(s.SnapshotPath, s.Sim)
			desc = fmt.Sprintf("Economy restored at turn %d", h.Turn)
		default:
			http.Error(w, "snapshot or snapshot path required", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeJSONStatus(w, http.StatusUnprocessableEntity, economy.Result{Success: false, Message: err.Error()})
			return
		}
		s.publishAction("admin", desc)
		writeJSON(w, economy.Result{Success: true, Message: desc})

	default:
		http.Error(w, "unknown action (use: save, export, restore)", http.StatusBadRequest)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	desc, err := s.Sim.Reset()
	if err != nil {
		writeJSONStatus(w, http.StatusConflict, economy.Result{Success: false, Message: err.Error()})
		return
	}
	if s.DB != nil {
		if err := s.DB.ClearHistory(); err != nil {
			slog.Error("clear history failed", "error", err)
		}
	}
	s.publishAction("admin", desc)
	writeJSON(w, economy.Result{Success: true, Message: desc})
}

// writeResult reports a domain result: 200 on success, 422 on a rule
// violation. Successful actions are also pushed to stream clients.
func (s *Server) writeResult(w http.ResponseWriter, kind string, res economy.Result) {
	if !res.Success {
		writeJSONStatus(w, http.StatusUnprocessableEntity, res)
		return
	}
	s.publishAction(kind, res)
	writeJSON(w, res)
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func queryLimit(r *http.Request, def, ceiling int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= ceiling {
			return n
		}
	}
	return def
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}
