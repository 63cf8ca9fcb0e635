package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"sublet-scraper/models"
	"sublet-scraper/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// RunStatusProvider exposes the latest run of the discovery loop.
type RunStatusProvider interface {
	LastRun() (services.RunStatus, bool)
}

// SeenReader reads back the seen set.
type SeenReader interface {
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]models.SeenEntry, error)
}

// Server is the read-only status endpoint used in scheduled mode.
type Server struct {
	runs   RunStatusProvider
	seen   SeenReader
	logger *zap.Logger
	srv    *http.Server
}

func New(addr string, runs RunStatusProvider, seen SeenReader, logger *zap.Logger) *Server {
	s := &Server{runs: runs, seen: seen, logger: logger}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/listings/recent", s.handleRecent).Methods(http.MethodGet)
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Status server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status  string           `json:"status"`
	LastRun *services.Report `json:"last_run,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	last, ok := s.runs.LastRun()
	if !ok {
		writeJSON(w, http.StatusOK, healthResponse{Status: "pending"})
		return
	}

	resp := healthResponse{Status: "ok", LastRun: &last.Report}
	code := http.StatusOK
	if !last.OK() {
		resp.Status = "failing"
		resp.Error = last.Error
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type seenEntry struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	FirstSeen string `json:"first_seen"`
}

type recentResponse struct {
	Total    int64       `json:"total"`
	Listings []seenEntry `json:"listings"`
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentLimit)
	}

	total, err := s.seen.Count(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	entries, err := s.seen.Recent(r.Context(), limit)
	if err != nil {
		s.internalError(w, err)
		return
	}

	resp := recentResponse{Total: total, Listings: make([]seenEntry, 0, len(entries))}
	for _, e := range entries {
		item := seenEntry{ID: e.ID, URL: e.URL}
		if !e.FirstSeen.IsZero() {
			item.FirstSeen = e.FirstSeen.Format(models.TimestampLayout)
		}
		resp.Listings = append(resp.Listings, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("Status request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
