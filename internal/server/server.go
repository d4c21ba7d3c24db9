// Package server exposes missions over HTTP and WebSocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/skyfleet/missionctl/internal/commands"
	"github.com/skyfleet/missionctl/internal/controller"
	"github.com/skyfleet/missionctl/internal/dispatcher"
	"github.com/skyfleet/missionctl/internal/registry"
	"github.com/skyfleet/missionctl/pkg/core"
)

const shutdownTimeout = 5 * time.Second

// Catalog is the read-only view of routes and profiles served by the API.
type Catalog interface {
	Patterns() []core.MissionPattern
	Route(p core.MissionPattern) (core.Route, bool)
	Profiles() []core.CaptureProfile
	DefaultPattern() core.MissionPattern
	DefaultProfileID() string
}

// Options configures a Server. Missions, Catalog, Dispatcher and Metrics are required.
type Options struct {
	Address        string
	AllowedOrigins []string
	Missions       *registry.Registry
	Catalog        Catalog
	Dispatcher     *dispatcher.Dispatcher
	Metrics        *Metrics
	Logger         *slog.Logger

	// AccessLog receives combined-format request logs when set.
	AccessLog io.Writer
}

// Server is the operator API.
type Server struct {
	missions   *registry.Registry
	catalog    Catalog
	dispatcher *dispatcher.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	origins    []string
	accessLog  io.Writer
	http       *http.Server
}

// New creates a server. It does not start listening.
func New(opts Options) (*Server, error) {
	if opts.Missions == nil || opts.Catalog == nil || opts.Dispatcher == nil || opts.Metrics == nil {
		return nil, errors.New("server requires missions, catalog, dispatcher and metrics")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		missions:   opts.Missions,
		catalog:    opts.Catalog,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("component", "server"),
		origins:    opts.AllowedOrigins,
		accessLog:  opts.AccessLog,
	}
	s.http = &http.Server{
		Addr:              opts.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler builds the routed handler with CORS, recovery and access logging.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.countRequests)

	router.HandleFunc("/healthcheck", s.healthcheck).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/catalog", s.getCatalog).Methods(http.MethodGet)
	api.HandleFunc("/missions", s.listMissions).Methods(http.MethodGet)
	api.HandleFunc("/missions", s.createMission).Methods(http.MethodPost)
	api.HandleFunc("/missions/{id}", s.getMission).Methods(http.MethodGet)
	api.HandleFunc("/missions/{id}", s.deleteMission).Methods(http.MethodDelete)
	api.HandleFunc("/missions/{id}/stream", s.stream).Methods(http.MethodGet)
	api.HandleFunc("/missions/{id}/{action}", s.missionAction).Methods(http.MethodPost)

	var h http.Handler = router
	h = handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	s.logger.Info("HTTP server listening", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type patternInfo struct {
	Name  core.MissionPattern `json:"name"`
	Route core.Route          `json:"route"`
}

type catalogResponse struct {
	Patterns       []patternInfo         `json:"patterns"`
	Profiles       []core.CaptureProfile `json:"profiles"`
	DefaultPattern core.MissionPattern   `json:"defaultPattern"`
	DefaultProfile string                `json:"defaultProfile"`
}

func (s *Server) getCatalog(w http.ResponseWriter, _ *http.Request) {
	resp := catalogResponse{
		Profiles:       s.catalog.Profiles(),
		DefaultPattern: s.catalog.DefaultPattern(),
		DefaultProfile: s.catalog.DefaultProfileID(),
	}
	for _, p := range s.catalog.Patterns() {
		route, _ := s.catalog.Route(p)
		resp.Patterns = append(resp.Patterns, patternInfo{Name: p, Route: route})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listMissions(w http.ResponseWriter, _ *http.Request) {
	snaps := []core.Snapshot{}
	for _, c := range s.missions.List() {
		snaps = append(snaps, c.Snapshot())
	}
	writeJSON(w, http.StatusOK, snaps)
}

type createRequest struct {
	Pattern core.MissionPattern `json:"pattern"`
	Profile string              `json:"profile"`
}

func (s *Server) createMission(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, http.StatusCreated, commands.Create, string(req.Pattern), req.Profile)
}

func (s *Server) getMission(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, http.StatusOK, commands.Status, mux.Vars(r)["id"])
}

func (s *Server) deleteMission(w http.ResponseWriter, r *http.Request) {
	if _, err := s.dispatcher.Dispatch(dispatcher.Event{
		Command: commands.Dispose,
		Args:    []string{mux.Vars(r)["id"]},
		Source:  "http",
	}); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type actionRequest struct {
	Value string `json:"value"`
}

func (s *Server) missionAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cmd, ok := commands.ForAction(vars["action"])
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s", dispatcher.ErrUnknownCommand, vars["action"]))
		return
	}
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, http.StatusOK, cmd, vars["id"], req.Value)
}

func (s *Server) dispatch(w http.ResponseWriter, _ *http.Request, status int, cmd string, args ...string) {
	res, err := s.dispatcher.Dispatch(dispatcher.Event{Command: cmd, Args: args, Source: "http"})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, res)
}

var errBadRequest = errors.New("bad request")

// decodeBody decodes an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, controller.ErrDisposed):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, dispatcher.ErrUnknownCommand),
		errors.Is(err, commands.ErrMissingArgument),
		errors.Is(err, controller.ErrUnknownPattern),
		errors.Is(err, controller.ErrUnknownProfile):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrMissionLocked),
		errors.Is(err, controller.ErrNotValidated),
		errors.Is(err, controller.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, dispatcher.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// countRequests records each request against its route template.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
