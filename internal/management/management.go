// Package management provides a lightweight HTTP API for runtime
// inspection of a running logprep-go instance.
//
// Endpoints:
//
//	GET  /status   - instance health plus each registered processor's
//	                 description and running event count
//	GET  /metrics  - full metrics.Snapshot as JSON
package management

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"logprep-go/internal/config"
	"logprep-go/internal/metrics"
	"logprep-go/internal/processor"
)

// Server is the management API server.
type Server struct {
	cfg        *config.Config
	startTime  time.Time
	token      string           // bearer token for auth; empty = no auth
	metrics    *metrics.Metrics // nil = no metrics
	processors []namedProcessor
}

type namedProcessor struct {
	name string
	proc processor.Processor
}

// New creates a management server. Processors register themselves with a
// short name ("pseudonymizer", "clusterer") via Register before the
// server starts serving.
func New(cfg *config.Config, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		token:     cfg.ManagementToken,
		metrics:   m,
	}
	if s.token != "" {
		log.Printf("[MANAGEMENT] Bearer token authentication enabled")
	}
	return s
}

// Register adds a processor to be reported under /status. Call before
// ListenAndServe; not safe for concurrent use with request handling.
func (s *Server) Register(name string, p processor.Processor) {
	s.processors = append(s.processors, namedProcessor{name: name, proc: p})
}

// Handler returns the HTTP handler for the management API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			log.Printf("[MANAGEMENT] Unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type processorStatus struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	EventsProcessed int64  `json:"eventsProcessed"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status     string            `json:"status"`
		Uptime     string            `json:"uptime"`
		Processors []processorStatus `json:"processors"`
	}

	resp := response{
		Status: "running",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	}
	for _, np := range s.processors {
		resp.Processors = append(resp.Processors, processorStatus{
			Name:            np.name,
			Description:     np.proc.Describe(),
			EventsProcessed: np.proc.EventsProcessedCount(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[MANAGEMENT] JSON encode error: %v", err)
	}
}

// ListenAndServe starts the management HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.ManagementPort)
	log.Printf("[MANAGEMENT] Listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
