package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"VisionFlow/pkg/plugin"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Server hosts plugins behind the remote invocation contract: a control
// endpoint listing deployed applications and one POST route per plugin. It
// resolves entity ids through its own process's data manager against the
// shared backing store, so only references cross the wire.
type Server struct {
	router     *chi.Mux
	registry   *plugin.Registry
	logger     *zap.Logger
	httpServer *http.Server
}

func NewServer(registry *plugin.Registry, logger *zap.Logger) *Server {
	s := &Server{
		registry: registry,
		logger:   logger,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.With(middleware.Timeout(10*time.Second)).Get("/applications", s.handleApplications)

	// Invocations block for the full plugin execution; no timeout here, the
	// caller's network timeout is the cancellation mechanism.
	s.router.Post("/plugins/{name}", s.handleInvoke)
}

// RouteFor returns the invocation route a hosted plugin is served under.
func RouteFor(pluginName string) string {
	return "/plugins/" + pluginName
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	apps := make([]Application, 0)
	for _, name := range s.registry.List() {
		apps = append(apps, Application{
			Plugin:    name,
			Route:     RouteFor(name),
			IsRunning: true,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apps)
}

type invokeRequest struct {
	Inputs     map[string]string      `json:"inputs"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, "plugin not found", http.StatusNotFound)
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Parameters arrive pre-parsed from the orchestrator; re-run them
	// through the schema so defaults hold when a caller hits the serving
	// host directly.
	raw := make([]plugin.RawParam, 0, len(req.Parameters))
	for k, v := range req.Parameters {
		raw = append(raw, plugin.RawParam{Name: k, Value: v})
	}
	params, perr := plugin.ParseParameters(p.Parameters(), raw)
	if perr != nil {
		http.Error(w, perr.Error(), http.StatusBadRequest)
		return
	}

	out, err := p.Execute(r.Context(), plugin.Input{
		Inputs:     req.Inputs,
		Parameters: params,
	})
	if err != nil {
		s.logger.Error("Hosted plugin execution failed",
			zap.String("plugin", name),
			zap.Error(err),
		)
		http.Error(w, "plugin execution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out.Outputs)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 30 * time.Second,
	}

	s.logger.Info("Starting plugin serving host", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down plugin serving host")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
