// Package server exposes the agents, the graph and the usage queries over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/finsurf/finsurf/internal/agent"
	"github.com/finsurf/finsurf/internal/graph"
	"github.com/finsurf/finsurf/internal/pipeline"
	"github.com/finsurf/finsurf/internal/telemetry"
)

// Runner executes a full graph run.
type Runner interface {
	Run(ctx context.Context, in graph.Input) (*pipeline.Result, error)
}

// Stats answers usage queries.
type Stats interface {
	AgentStats(ctx context.Context, since time.Time) ([]telemetry.AgentStat, error)
	TotalSince(ctx context.Context, window time.Duration) (*telemetry.Total, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	agents        graph.Agents
	guard         agent.Guard
	runner        Runner
	stats         Stats
	skipGuardrail bool
}

// Option configures a Server.
type Option func(*Server)

// WithSkipGuardrail bypasses the guardrail on every request.
func WithSkipGuardrail(skip bool) Option {
	return func(s *Server) { s.skipGuardrail = skip }
}

// New creates a Server.
func New(agents graph.Agents, guard agent.Guard, runner Runner, stats Stats, opts ...Option) *Server {
	s := &Server{agents: agents, guard: guard, runner: runner, stats: stats}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed API. An empty origin list allows any origin.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/research/{ticker}", s.handleResearch)
		r.Get("/sentiment/{ticker}", s.handleSentiment)
		r.Get("/guardrail/{ticker}", s.handleGuardrail)
		r.Get("/tax/{ticker}", s.handleTax)
		r.Get("/dividend/{ticker}", s.handleDividend)
		r.Post("/graph", s.handleGraph)
		r.Get("/usage/agents", s.handleUsageAgents)
		r.Get("/usage/total", s.handleUsageTotal)
	})

	return r
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	ticker := tickerParam(r)
	out, err := s.agents.Research(r.Context(), ticker, s.skipGuardrail)
	writeEnvelope(w, "research", ticker, out, err)
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	ticker := tickerParam(r)
	out, err := s.agents.Sentiment(r.Context(), ticker, s.skipGuardrail)
	writeEnvelope(w, "sentiment", ticker, out, err)
}

func (s *Server) handleTax(w http.ResponseWriter, r *http.Request) {
	ticker := tickerParam(r)
	q := r.URL.Query()
	purchase, sell := q.Get("purchase"), q.Get("sell")
	if purchase == "" || sell == "" {
		writeError(w, http.StatusBadRequest, "purchase and sell are required")
		return
	}
	out, err := s.agents.Tax(r.Context(), ticker, purchase, sell, s.skipGuardrail)
	writeEnvelope(w, "tax", ticker, out, err)
}

func (s *Server) handleDividend(w http.ResponseWriter, r *http.Request) {
	ticker := tickerParam(r)
	q := r.URL.Query()

	shares := graph.DefaultShares
	if v := q.Get("shares"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "shares must be a positive number")
			return
		}
		shares = n
	}
	years := graph.DefaultYears
	if v := q.Get("years"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "years must be a positive integer")
			return
		}
		years = n
	}

	writeJSON(w, http.StatusOK, s.agents.Dividend(r.Context(), ticker, shares, years, s.skipGuardrail))
}

func (s *Server) handleGuardrail(w http.ResponseWriter, r *http.Request) {
	ticker := tickerParam(r)
	verdict := "BLOCKED"
	if s.guard.IsSafe(r.Context(), ticker) {
		verdict = "SAFE"
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticker": ticker, "verdict": verdict})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var in graph.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Ticker = strings.TrimSpace(in.Ticker)
	if in.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	// Only the operator may bypass the guardrail.
	in.SkipGuardrail = s.skipGuardrail

	res, err := s.runner.Run(r.Context(), in.WithDefaults())
	if err != nil {
		zap.L().Error("server: graph run failed", zap.String("ticker", in.Ticker), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "graph run failed")
		return
	}
	w.Header().Set("X-Run-ID", res.RunID)
	writeJSON(w, http.StatusOK, res.State)
}

func (s *Server) handleUsageAgents(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.AgentStats(r.Context(), time.Time{})
	if err != nil {
		zap.L().Error("server: agent stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read usage")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUsageTotal(w http.ResponseWriter, r *http.Request) {
	hours := 24.0
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive number")
			return
		}
		hours = n
	}

	total, err := s.stats.TotalSince(r.Context(), time.Duration(hours*float64(time.Hour)))
	if err != nil {
		zap.L().Error("server: usage total", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read usage")
		return
	}
	writeJSON(w, http.StatusOK, total)
}

func tickerParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "ticker"))
}

// writeEnvelope sends an agent envelope as is. A failed provider chain
// still yields a placeholder envelope, so it is served with 200.
func writeEnvelope(w http.ResponseWriter, agentName, ticker, envelope string, err error) {
	if err != nil {
		zap.L().Warn("server: agent returned placeholder",
			zap.String("agent", agentName),
			zap.String("ticker", ticker),
			zap.Error(err),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(envelope))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
