// Package httptransport serves the query protocol over HTTP: query
// requests arrive as JSON POST bodies, and a WebSocket endpoint next to it
// carries the same envelopes for clients that hold a connection open.
package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/query"
)

// Config holds the HTTP transport configuration.
type Config struct {
	Addr string `yaml:"addr" json:"addr"`
	Path string `yaml:"path" json:"path"`
	// RateLimit caps requests per second across the endpoint; zero
	// disables limiting.
	RateLimit float64 `yaml:"rateLimit" json:"rateLimit"`
	RateBurst int     `yaml:"rateBurst" json:"rateBurst"`
	// AllowedOrigins restricts WebSocket upgrades. Empty allows only
	// same-origin requests.
	AllowedOrigins []string      `yaml:"allowedOrigins" json:"allowedOrigins"`
	ReadTimeout    time.Duration `yaml:"readTimeout" json:"readTimeout"`
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"addr is required")
	}
	if c.Path == "" {
		c.Path = "/query"
	}
	if c.RateLimit < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("rateLimit must be non-negative, got %v", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = int(c.RateLimit)
		if c.RateBurst < 1 {
			c.RateBurst = 1
		}
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	return nil
}

// Server serves query requests over HTTP POST and WebSocket.
type Server struct {
	engine   *query.Engine
	config   Config
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates an HTTP server over an engine.
func NewServer(engine *query.Engine, config Config, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "NewServer",
			"engine is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		engine: engine,
		config: config,
	}
	if config.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "http-transport")
	}
	return s, nil
}

// Handler returns the transport's HTTP handler: the query endpoint at the
// configured path and the WebSocket endpoint at path + "/ws".
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleQuery)
	mux.HandleFunc(s.config.Path+"/ws", s.handleWebSocket)
	return mux
}

// Start starts the server. Blocks until the server exits.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "http transport")
	}
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
	}
	server := s.server
	s.mu.Unlock()

	s.logger.Info("listening", "addr", s.config.Addr, "path", s.config.Path)
	return server.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	if err != nil {
		return errors.WrapRecoverable(err, "Server", "Stop", "graceful shutdown")
	}
	return nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed,
			errors.WrapInvalid(errors.ErrInvalidQuery, "Server", "handleQuery",
				fmt.Sprintf("method %s not allowed", r.Method)))
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests,
			errors.WrapRecoverable(fmt.Errorf("rate limit exceeded"),
				"Server", "handleQuery", "rate limiting"))
		return
	}

	var request map[string]any
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest,
			errors.WrapInvalid(errors.ErrInvalidPayload, "Server", "handleQuery",
				"request body is not valid JSON"))
		return
	}

	response, err := s.engine.Receive(r.Context(), request)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	for {
		var request map[string]any
		if err := conn.ReadJSON(&request); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if s.limiter != nil && !s.limiter.Allow() {
			if err := conn.WriteJSON(query.ErrorEnvelope(
				errors.WrapRecoverable(fmt.Errorf("rate limit exceeded"),
					"Server", "handleWebSocket", "rate limiting"))); err != nil {
				return
			}
			continue
		}

		response, err := s.engine.Receive(r.Context(), request)
		if err != nil {
			response = query.ErrorEnvelope(err)
		}
		if err := conn.WriteJSON(response); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		// Fall back to gorilla's same-origin default.
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, query.ErrorEnvelope(err))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response write failed", "error", err)
	}
}

// statusForError maps wire error codes to HTTP statuses. The error
// envelope travels in the body regardless, so clients branch on the code,
// not the status.
func statusForError(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeInvalidQuery, errors.CodeInvalidValue,
		errors.CodeUnknownProperty, errors.CodePropertyKind,
		errors.CodeInactiveAttribute:
		return http.StatusBadRequest
	case errors.CodeUnauthorized:
		return http.StatusForbidden
	case errors.CodeUnknownComponent, errors.CodeDanglingReference:
		return http.StatusNotFound
	case errors.CodeIdentityConflict, errors.CodeImmutableIdentifier:
		return http.StatusConflict
	case errors.CodeVersionMismatch:
		return http.StatusUpgradeRequired
	default:
		return http.StatusInternalServerError
	}
}
