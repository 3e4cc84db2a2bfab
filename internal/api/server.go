// Package api provides the read-only HTTP API for observing a running swarm.
// Every handler reads through the simulation's view methods; nothing here
// mutates simulation state.
package api

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/swarm-ledger/internal/agents"
	"github.com/talgya/swarm-ledger/internal/engine"
	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/persistence"
	"github.com/talgya/swarm-ledger/internal/world"
)

// Token fields are recomputed on every request, so they share a budget per client.
const (
	tokensPerWindow = 60
	tokensWindow    = time.Minute
)

// Server serves the swarm state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine        // Optional; status reports pacing when set
	Recorder *persistence.Recorder // Optional; status reports the run id when set
	Gatherer prometheus.Gatherer   // Defaults to prometheus.DefaultGatherer
	Port     int

	tokensLimiter *RateLimiter
	http          *http.Server
}

// Handler builds the routed handler. It is separate from Start so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	if s.tokensLimiter == nil {
		s.tokensLimiter = NewRateLimiter(tokensPerWindow, tokensWindow)
	}
	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/interest", s.handleInterest)

	// Per-agent views.
	mux.HandleFunc("GET /api/v1/agent/{id}", s.withAgent(s.handleAgentDetail))
	mux.HandleFunc("GET /api/v1/agent/{id}/ledger", s.withAgent(s.handleAgentLedger))
	mux.HandleFunc("GET /api/v1/agent/{id}/pois", s.withAgent(s.handleAgentPOIs))
	mux.HandleFunc("GET /api/v1/agent/{id}/tokens", RateLimitMiddleware(s.tokensLimiter, s.withAgent(s.handleAgentTokens)))

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !ierrors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the listener started by Start and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.tokensLimiter != nil {
		s.tokensLimiter.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list; localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type agentHandler func(w http.ResponseWriter, r *http.Request, id agents.AgentID)

// withAgent parses the {id} path segment.
func (s *Server) withAgent(next agentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid agent id", http.StatusBadRequest)
			return
		}
		next(w, r, agents.AgentID(raw))
	}
}

// writeAgentError maps view errors to status codes.
func writeAgentError(w http.ResponseWriter, err error) {
	if ierrors.Is(err, engine.ErrUnknownAgent) {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	slog.Error("agent view failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":  "swarm-ledger",
		"tick":  s.Sim.CurrentTick(),
		"stats": s.Sim.Snapshot(),
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed
		status["running"] = s.Eng.Running()
	}
	if s.Recorder != nil {
		status["run_id"] = s.Recorder.RunID()
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.AgentSummaries())
}

func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.InterestMap())
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request, id agents.AgentID) {
	detail, err := s.Sim.AgentDetail(id)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, detail)
}

// handleAgentLedger returns the blocks ordered by issuer and sequence.
// ?cone=<issuer-seq> limits them to that block's past cone; ?tag= filters to
// one event kind.
func (s *Server) handleAgentLedger(w http.ResponseWriter, r *http.Request, id agents.AgentID) {
	var (
		blocks []*ledger.Block
		err    error
	)
	if cone := r.URL.Query().Get("cone"); cone != "" {
		blockID, parseErr := ledger.ParseBlockID(cone)
		if parseErr != nil {
			http.Error(w, "invalid block id", http.StatusBadRequest)
			return
		}
		blocks, err = s.Sim.AgentPastCone(id, blockID)
		if ierrors.Is(err, ledger.ErrMissingParent) {
			http.Error(w, "block not found", http.StatusNotFound)
			return
		}
	} else {
		blocks, err = s.Sim.AgentLedger(id)
	}
	if err != nil {
		writeAgentError(w, err)
		return
	}
	if tag := r.URL.Query().Get("tag"); tag != "" {
		blocks = slices.DeleteFunc(blocks, func(b *ledger.Block) bool {
			return string(b.Tag) != tag
		})
	}
	writeJSON(w, blocks)
}

// poiEntry flattens an aggregate entry; JSON objects cannot key on a Cell.
type poiEntry struct {
	Cell world.Cell `json:"cell"`
	ledger.POICounts
}

func (s *Server) handleAgentPOIs(w http.ResponseWriter, r *http.Request, id agents.AgentID) {
	agg, err := s.Sim.AgentPOIs(id)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, flattenPOIs(agg))
}

func flattenPOIs(agg ledger.Aggregate) []poiEntry {
	out := make([]poiEntry, 0, len(agg))
	for c, counts := range agg {
		out = append(out, poiEntry{Cell: c, POICounts: counts})
	}
	slices.SortFunc(out, func(a, b poiEntry) int {
		return cmp.Or(cmp.Compare(a.Cell.Row, b.Cell.Row), cmp.Compare(a.Cell.Col, b.Cell.Col))
	})
	return out
}

func (s *Server) handleAgentTokens(w http.ResponseWriter, r *http.Request, id agents.AgentID) {
	scores, err := s.Sim.AgentTokens(id)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, scores)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("encode response", "error", err)
	}
}
