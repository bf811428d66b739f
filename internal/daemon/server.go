// Package daemon serves the execution, hint and submission endpoints that
// exercise widgets call, plus document and mode endpoints for editors.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/config"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/hints"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/llm"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/runner"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

// Version is reported by /v1/status.
var Version = "0.1.0"

// Server represents the exdoc daemon HTTP server
type Server struct {
	cfg      *config.LocalConfig
	server   *http.Server
	router   *http.ServeMux
	logger   *slog.Logger
	started  time.Time
	upgrader websocket.Upgrader

	// Services
	llmRegistry    *llm.Registry
	runnerExecutor runner.Executor
	runner         *runner.Service
	hints          hints.HintService
	submissions    submission.SubmissionService
	documents      *documentSet
	hub            *Hub
	auth           *Authenticator
}

// ServerConfig holds configuration for creating a new server. Nil services
// are built from Config.
type ServerConfig struct {
	Config *config.LocalConfig

	// Executor runs submitted code (default: from Config.Runner)
	Executor runner.Executor

	// Hints overrides the provider-backed hint service.
	Hints hints.HintService

	// Submissions records answers (default: in-memory store)
	Submissions submission.SubmissionService

	// Documents persists document snapshots. Nil keeps documents in memory.
	Documents document.SnapshotStore

	Logger *slog.Logger
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		cfg.Config = config.DefaultLocalConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg.Config,
		router:   http.NewServeMux(),
		logger:   logger,
		upgrader: newUpgrader(cfg.Config.Daemon.AllowedOrigins),
		hub:      NewHub(logger),
		auth:     NewAuthenticator(cfg.Config.Auth.JWTSecret),
	}

	registry := llm.NewRegistry()
	if err := s.setupLLMProviders(registry); err != nil {
		return nil, fmt.Errorf("setup llm providers: %w", err)
	}
	s.llmRegistry = registry

	s.runnerExecutor = cfg.Executor
	if s.runnerExecutor == nil {
		s.runnerExecutor = s.newExecutor()
	}
	s.runner = runner.NewService(runner.Config{
		Timeout:   cfg.Config.Runner.Timeout,
		MaxOutput: cfg.Config.Runner.MaxOutputBytes,
	}, s.runnerExecutor, logger.With("component", "runner"))

	s.hints = cfg.Hints
	if s.hints == nil {
		s.hints = hints.NewService(registry, cfg.Config.LLM.DefaultProvider, logger.With("component", "hints"))
	}

	s.submissions = cfg.Submissions
	if s.submissions == nil {
		s.submissions = submission.NewService(submission.NewMemoryStore(),
			submission.WithLogger(logger.With("component", "submission")))
	}

	s.documents = newDocumentSet(cfg.Documents)

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = authMiddleware(s.auth, handler)
	handler = corsMiddleware(cfg.Config.Daemon.AllowedOrigins)(handler)
	handler = correlationIDMiddleware(handler)
	handler = loggingMiddleware(logger, handler)
	handler = recoveryMiddleware(logger, handler)

	s.server = &http.Server{
		Addr:         cfg.Config.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // hints can take a while
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	return s, nil
}

func (s *Server) newExecutor() runner.Executor {
	rc := s.cfg.Runner
	if rc.Executor == "docker" {
		executor, err := runner.NewDockerExecutor(runner.DockerConfig{
			Image:      rc.Docker.Image,
			MemoryMB:   rc.Docker.MemoryMB,
			CPULimit:   rc.Docker.CPULimit,
			NetworkOff: rc.Docker.NetworkOff,
		})
		if err == nil {
			return executor
		}
		s.logger.Warn("Docker executor not available, using local executor", "error", err)
	}
	return runner.NewLocalExecutor(rc.Python, "")
}

// setupLLMProviders registers every enabled provider that can be reached,
// each behind the resilience wrapper.
func (s *Server) setupLLMProviders(registry *llm.Registry) error {
	for name, providerCfg := range s.cfg.LLM.Providers {
		if providerCfg == nil || !providerCfg.Enabled {
			continue
		}

		var provider llm.Provider
		switch name {
		case "claude":
			if providerCfg.APIKey == "" {
				s.logger.Debug("Claude provider enabled but no API key set")
				continue
			}
			provider = llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			})
		case "openai":
			if providerCfg.APIKey == "" {
				s.logger.Debug("OpenAI provider enabled but no API key set")
				continue
			}
			provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			})
		case "ollama":
			provider = llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			})
		default:
			s.logger.Warn("unknown LLM provider in config", "name", name)
			continue
		}

		rcfg := llm.DefaultResilientConfig()
		rcfg.Logger = s.logger
		registry.Register(name, llm.NewResilientProvider(provider, rcfg))
		s.logger.Info("registered LLM provider", "name", name, "model", providerCfg.Model)
	}

	def := s.cfg.LLM.DefaultProvider
	if def != "" && def != "auto" {
		if err := registry.SetDefault(def); err != nil {
			s.logger.Warn("default LLM provider not registered", "name", def)
		}
	}
	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Widget services
	s.router.HandleFunc("POST /api/python/execute", s.handleExecute)
	s.router.HandleFunc("POST /api/hint/generate", s.handleHint)
	s.router.HandleFunc("POST /api/mcq/submit", s.handleSubmit)
	s.router.HandleFunc("GET /api/mcq/{id}/stats", s.handleStats)
	s.router.HandleFunc("GET /api/submissions/{id}", s.handleGetSubmission)

	// Documents
	s.router.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	s.router.HandleFunc("PUT /api/documents/{id}", s.handlePutDocument)
	s.router.HandleFunc("GET /api/documents/{id}/mode", s.handleGetMode)
	s.router.HandleFunc("PUT /api/documents/{id}/mode", s.handleSetMode)
	s.router.HandleFunc("GET /api/documents/{id}/mode/ws", s.handleModeStream)
}

// Handler returns the full middleware chain, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.started = time.Now()
	s.logger.Info("starting exdoc daemon",
		"addr", s.server.Addr,
		"llm_providers", s.llmRegistry.List(),
		"runner", s.cfg.Runner.Executor,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")

	s.hub.Close()
	s.runner.CancelAll()
	s.documents.close()

	if closer, ok := s.runnerExecutor.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("failed to close executor", "error", err)
		}
	}
	if err := s.llmRegistry.Close(); err != nil {
		s.logger.Warn("failed to close LLM providers", "error", err)
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":        "running",
		"version":       Version,
		"llm_providers": s.llmRegistry.List(),
		"runner":        s.cfg.Runner.Executor,
		"running_runs":  s.runner.Running(),
		"storage":       s.cfg.Storage.Driver,
		"queue":         s.cfg.Queue.URL != "",
		"cache":         s.cfg.Cache.Addr != "",
		"auth":          s.auth != nil,
	}
	if !s.started.IsZero() {
		status["uptime_seconds"] = int64(time.Since(s.started).Seconds())
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

// jsonError writes {success:false, error, message}. Client errors carry
// their cause in "error"; server-side causes are only logged.
func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil && status >= 500 {
		s.logger.Error(message, "error", err)
		err = nil
	}
	writeJSON(w, status, errorBody(message, err))
}

func errorBody(message string, err error) map[string]interface{} {
	body := map[string]interface{}{
		"success": false,
		"error":   message,
		"message": message,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
