package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/couchcryptid/solar-outlook-service/internal/reconcile"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds POSTed prediction payloads.
const maxBodyBytes = 1 << 20

// Forecaster is the engine surface the API serves.
type Forecaster interface {
	CheckReadiness(ctx context.Context) error
	Refresh(ctx context.Context) (reconcile.RefreshResult, error)
	IngestPredictions(ctx context.Context, rows []domain.ForecastRow) (reconcile.MergeResult, error)
	RunModel(ctx context.Context) (reconcile.MergeResult, error)
	Window(ctx context.Context) (domain.Window, error)
	StrictWindow(ctx context.Context) (domain.Tier, []domain.WindowDay, error)
	Shifted(ctx context.Context) (domain.Window, error)
	Combined(ctx context.Context) ([]domain.ForecastRow, error)
}

// Server exposes the forecast API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	engine     Forecaster
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API and operational routes.
func NewServer(addr string, engine Forecaster, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Minute, // model runs are synchronous
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(engine))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/predictions/27day", s.handleWindow)
	mux.HandleFunc("GET /api/predictions/combined", s.handleCombined)
	mux.HandleFunc("GET /api/predictions/lstm", s.handleShifted)
	mux.HandleFunc("POST /api/predictions/lstm", s.handleIngest)
	mux.HandleFunc("POST /api/predictions/run", s.handleRunModel)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		tier, days, err := s.engine.StrictWindow(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("X-Forecast-Tier", string(tier))
		writeJSON(w, http.StatusOK, days)
		return
	}

	win, err := s.engine.Window(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeWindow(w, win)
}

func (s *Server) handleShifted(w http.ResponseWriter, r *http.Request) {
	win, err := s.engine.Shifted(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeWindow(w, win)
}

func (s *Server) writeWindow(w http.ResponseWriter, win domain.Window) {
	if win.Empty() {
		writeJSON(w, http.StatusNotFound, errorBody(domain.ErrInsufficientData))
		return
	}
	w.Header().Set("X-Forecast-Tier", string(win.Tier))
	writeJSON(w, http.StatusOK, win.Rows)
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.Combined(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.ForecastRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}
	rows, rejected, err := domain.DecodeRows(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.IngestPredictions(r.Context(), rows)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res.Received += rejected
	res.Rejected += rejected
	writeJSON(w, http.StatusOK, mergeBody(res))
}

func (s *Server) handleRunModel(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.RunModel(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mergeBody(res))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"parsed":     res.Parsed,
		"upserted":   res.Upserted,
		"deleted":    res.Deleted,
		"first_date": domain.FormatDate(res.FirstDate),
		"last_date":  domain.FormatDate(res.LastDate),
	})
}

func mergeBody(res reconcile.MergeResult) map[string]any {
	body := map[string]any{
		"received": res.Received,
		"rejected": res.Rejected,
		"accepted": res.Accepted,
		"upserted": res.Upserted,
		"deleted":  res.Deleted,
		"skipped":  res.Skipped,
	}
	if !res.Boundary.IsZero() {
		body["boundary"] = domain.FormatDate(res.Boundary)
	}
	return body
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrEmptyBulletin):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidPrediction):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrModelNotConfigured):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody(err))
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
