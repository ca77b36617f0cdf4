package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"seasonbot/internal/config"
	"seasonbot/internal/logging"
	"seasonbot/internal/services/telegram"
)

const maxWebhookBody = 1 << 20

// HealthCheck probes a dependency the bot cannot work without.
type HealthCheck func(ctx context.Context) error

// APIServer serves the webhook endpoint (webhook mode only) and /healthz.
type APIServer struct {
	bind    string
	logger  *slog.Logger
	health  HealthCheck
	router  *mux.Router
	baseCtx context.Context

	listener net.Listener
	server   *http.Server
}

// NewAPIServer builds the HTTP surface. It returns nil when no bind address
// is configured. dispatcher may be nil in polling mode.
func NewAPIServer(cfg *config.Config, dispatcher *Dispatcher, health HealthCheck, logger *slog.Logger) *APIServer {
	if cfg == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	s := &APIServer{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		health:  health,
		router:  mux.NewRouter(),
		baseCtx: context.Background(),
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if cfg.Bot.Mode == config.ModeWebhook && dispatcher != nil {
		s.router.HandleFunc(cfg.Webhook.Path,
			secretTokenMiddleware(cfg.Webhook.SecretToken, s.webhookHandler(dispatcher))).Methods(http.MethodPost)
	}
	return s
}

// Handler is the full middleware-wrapped handler.
func (s *APIServer) Handler() http.Handler {
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(s.router)
}

// Start listens on the bind address. Updates received through the webhook
// are handled under ctx, not the request context, so they outlive the
// response.
func (s *APIServer) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.baseCtx = ctx
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = srv

	// Stop clears s.server, so the goroutine must not read the field.
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address, empty before Start.
func (s *APIServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests.
func (s *APIServer) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.server = nil
	s.listener = nil
}

func (s *APIServer) webhookHandler(dispatcher *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update telegram.Update
		body := http.MaxBytesReader(w, r.Body, maxWebhookBody)
		if err := json.NewDecoder(body).Decode(&update); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid update payload")
			return
		}
		dispatcher.Submit(s.baseCtx, update)
		s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logging.WarnWithContext(s.logger, "health check failed", "health_check_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check catalog storage connectivity"))
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// recoveryLogger adapts slog to gorilla's RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("http handler panicked", logging.String("panic", fmt.Sprint(v...)))
}
