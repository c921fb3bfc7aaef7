// Package api exposes the QA service over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ragqa/internal/corpus"
	"ragqa/internal/metrics"
	"ragqa/internal/retrieval"
	"ragqa/internal/semantic"
	"ragqa/internal/service"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (service.Answer, error)
}

// Library is the corpus side the admin and health endpoints need.
type Library interface {
	Mode() retrieval.Mode
	Snapshot() *corpus.Snapshot
	IndexState() (semantic.State, error)
	Reload(ctx context.Context) (*corpus.Snapshot, error)
}

// maxAskBody caps the /ask request body.
const maxAskBody = 64 << 10

type Options struct {
	// AdminToken guards POST /admin/reload. Empty disables the endpoint.
	AdminToken  string
	CORSOrigins []string
}

type Server struct {
	asker   Asker
	library Library
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger
}

func NewServer(asker Asker, library Library, m *metrics.Metrics, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{asker: asker, library: library, metrics: m, opts: opts, logger: logger}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
	Status string `json:"status,omitempty"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Mode       string `json:"mode"`
	Units      int    `json:"units"`
	Generation uint64 `json:"generation"`
	Index      string `json:"index"`
	IndexError string `json:"index_error,omitempty"`
}

type reloadResponse struct {
	Units      int    `json:"units"`
	Generation uint64 `json:"generation"`
	Error      string `json:"error,omitempty"`
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(s.recoverer)
	r.Use(s.cors)

	r.Post("/ask", s.handleAsk)
	r.Get("/health", s.handleHealth)
	r.Post("/admin/reload", s.handleReload)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	}
	return r
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	body := http.MaxBytesReader(w, r.Body, maxAskBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, askResponse{Answer: service.MsgNoQuestion})
		return
	}

	ans, err := s.asker.Ask(r.Context(), req.Question)
	switch {
	case errors.Is(err, service.ErrEmptyQuestion):
		writeJSON(w, http.StatusBadRequest, askResponse{Answer: service.MsgNoQuestion})
		return
	case err != nil:
		s.logger.Error("api: ask failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, askResponse{Answer: service.MsgInternal})
		return
	}

	status := http.StatusOK
	if ans.Status == service.StatusNotReady {
		status = http.StatusServiceUnavailable
		if ans.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int((ans.RetryAfter+time.Second-1)/time.Second)))
		}
	}
	writeJSON(w, status, askResponse{Answer: ans.Text, Status: string(ans.Status)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Mode: string(s.library.Mode())}
	if snap := s.library.Snapshot(); snap != nil {
		resp.Units = snap.Len()
		resp.Generation = snap.Generation
	}
	state, err := s.library.IndexState()
	resp.Index = state.String()
	if err != nil {
		resp.IndexError = err.Error()
	}
	if resp.Units == 0 || (s.library.Mode() == retrieval.ModeSemantic && state != semantic.Ready) {
		resp.Status = "not_ready"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.opts.AdminToken == "" {
		http.NotFound(w, r)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	snap, err := s.library.Reload(r.Context())
	if err != nil && !errors.Is(err, corpus.ErrEmptyCorpus) {
		s.logger.Error("api: reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, reloadResponse{Error: err.Error()})
		return
	}
	resp := reloadResponse{Units: snap.Len(), Generation: snap.Generation}
	if err != nil {
		resp.Error = err.Error()
	}
	s.metrics.Corpus(snap.Len(), snap.Generation)
	s.logger.Info("api: corpus reloaded", "units", resp.Units, "generation", resp.Generation)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authorized(r *http.Request) bool {
	token := r.Header.Get("X-Admin-Token")
	if auth := r.Header.Get("Authorization"); token == "" && strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) == 1
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// recoverer turns a panic into the generic JSON error answer.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("api: panic", "panic", rec, "request_id", middleware.GetReqID(r.Context()))
				writeJSON(w, http.StatusInternalServerError, askResponse{Answer: service.MsgInternal})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if len(s.opts.CORSOrigins) == 0 || slices.Contains(s.opts.CORSOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.opts.CORSOrigins, origin) {
		return origin
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
