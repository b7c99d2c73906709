package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"aplose/internal/api"
	"aplose/internal/config"
	"aplose/internal/logging"
	"aplose/internal/metrics"
	"aplose/internal/preflight"
	"aplose/internal/store"
	"aplose/internal/validation"
)

const maxRequestBody = 1 << 20

// serverStore is the persistence surface the HTTP API needs.
type serverStore interface {
	api.TaskStore
	api.NewsStore
	preflight.HealthChecker
	UserResolver
}

type apiServer struct {
	cfg     *config.Config
	bind    string
	logger  *slog.Logger
	store   serverStore
	tasks   *api.TaskService
	news    *api.NewsService
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

type errorResponse struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details,omitempty"`
}

type healthResponse struct {
	Status string             `json:"status"`
	Checks []preflight.Result `json:"checks"`
}

func newAPIServer(cfg *config.Config, st serverStore, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		cfg:    cfg,
		bind:   strings.TrimSpace(cfg.Server.Bind),
		logger: logger,
		store:  st,
		tasks:  api.NewTaskService(st, cfg.Server.StaticURL, logger),
		news:   api.NewNewsService(st, cfg.Server.NewsPageSize, logger),
	}
	srv.handler = srv.routes()
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(recordMetrics)
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/news", func(r chi.Router) {
			r.Get("/", s.handleNewsList)
			r.Get("/{newsID}", s.handleNewsItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(identity(s.store, s.writeError))
			r.Get("/annotation-task/campaign/{campaignID}", s.handleCampaignTasks)
			r.Get("/annotation-task/{taskID}", s.handleTaskRetrieve)
			r.Put("/annotation-task/{taskID}", s.handleTaskSubmit)
		})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: config.Seconds(s.cfg.Server.ReadHeaderTimeout),
		ReadTimeout:       config.Seconds(s.cfg.Server.ReadTimeout),
		WriteTimeout:      config.Seconds(s.cfg.Server.WriteTimeout),
		IdleTimeout:       config.Seconds(s.cfg.Server.IdleTimeout),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown(server)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server != nil {
		s.shutdown(server)
	}
}

func (s *apiServer) shutdown(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(s.cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log().Warn("api server shutdown", logging.Error(err))
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := preflight.RunAll(r.Context(), s.cfg, s.store)
	if preflight.AllPassed(checks) {
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Checks: checks})
		return
	}
	s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: checks})
}

func (s *apiServer) handleCampaignTasks(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := s.pathID(w, r, "campaignID")
	if !ok {
		return
	}
	userID, _ := logging.UserIDFromContext(r.Context())

	tasks, err := s.tasks.CampaignTasks(r.Context(), campaignID, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *apiServer) handleTaskRetrieve(w http.ResponseWriter, r *http.Request) {
	taskID, ok := s.pathID(w, r, "taskID")
	if !ok {
		return
	}
	userID, _ := logging.UserIDFromContext(r.Context())

	payload, err := s.tasks.Retrieve(r.Context(), taskID, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleTaskSubmit(w http.ResponseWriter, r *http.Request) {
	taskID, ok := s.pathID(w, r, "taskID")
	if !ok {
		return
	}
	userID, _ := logging.UserIDFromContext(r.Context())

	var req api.SubmitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.tasks.Submit(r.Context(), taskID, userID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleNewsList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := queryInt(query.Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(query.Get("offset"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	list, err := s.news.List(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *apiServer) handleNewsItem(w http.ResponseWriter, r *http.Request) {
	newsID, ok := s.pathID(w, r, "newsID")
	if !ok {
		return
	}
	item, err := s.news.Get(r.Context(), newsID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", strings.TrimSuffix(param, "ID")+" id", raw))
		return 0, false
	}
	return id, true
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return n, nil
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := validation.AsRequestError(err); ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Details: verr.Fields()})
		return
	}
	if errors.Is(err, api.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	logging.WithContext(r.Context(), s.log()).Error("request failed",
		logging.String("path", r.URL.Path),
		logging.Error(err),
	)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

var _ serverStore = (*store.Store)(nil)
