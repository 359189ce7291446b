// Package natstransport serves the query protocol over NATS request/reply:
// request envelopes arrive as JSON messages on a subject, responses go
// back on the reply inbox. Servers join a queue group so multiple
// instances share the load.
package natstransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/query"
)

// Config holds the NATS transport configuration.
type Config struct {
	URL     string `yaml:"url" json:"url"`
	Subject string `yaml:"subject" json:"subject"`
	// QueueGroup distributes requests across server instances subscribed
	// to the same subject.
	QueueGroup     string        `yaml:"queueGroup" json:"queueGroup"`
	Name           string        `yaml:"name" json:"name"`
	RequestTimeout time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	ReconnectWait  time.Duration `yaml:"reconnectWait" json:"reconnectWait"`
	MaxReconnects  int           `yaml:"maxReconnects" json:"maxReconnects"`
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Subject == "" {
		c.Subject = "layr.query"
	}
	if c.QueueGroup == "" {
		c.QueueGroup = "layr"
	}
	if c.Name == "" {
		c.Name = "layr-query"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	return nil
}

func (c Config) connectOptions(logger *slog.Logger) []nats.Option {
	return []nats.Option{
		nats.Name(c.Name),
		nats.ReconnectWait(c.ReconnectWait),
		nats.MaxReconnects(c.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}
}

// Server answers query requests arriving on a NATS subject.
type Server struct {
	engine *query.Engine
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a NATS server over an engine.
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
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "nats-transport")
	}
	return s, nil
}

// Start connects to NATS and subscribes to the query subject. It returns
// once the subscription is live; serving happens on NATS callbacks until
// Stop or context cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "nats transport")
	}

	conn, err := nats.Connect(s.config.URL, s.config.connectOptions(s.logger)...)
	if err != nil {
		return errors.WrapRecoverable(err, "Server", "Start",
			fmt.Sprintf("connecting to %s", s.config.URL))
	}

	sub, err := conn.QueueSubscribe(s.config.Subject, s.config.QueueGroup, func(msg *nats.Msg) {
		reply := s.handle(ctx, msg.Data)
		if err := msg.Respond(reply); err != nil {
			s.logger.Warn("reply failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		conn.Close()
		return errors.WrapRecoverable(err, "Server", "Start",
			fmt.Sprintf("subscribing to %s", s.config.Subject))
	}

	s.conn = conn
	s.sub = sub
	s.logger.Info("listening", "subject", s.config.Subject, "queue", s.config.QueueGroup)
	return nil
}

// handle serves one raw request message and returns the raw response.
// Every failure becomes an error envelope; the reply always parses.
func (s *Server) handle(ctx context.Context, data []byte) []byte {
	var request map[string]any
	if err := json.Unmarshal(data, &request); err != nil {
		return mustMarshal(query.ErrorEnvelope(
			errors.WrapInvalid(errors.ErrInvalidPayload, "Server", "handle",
				"request is not valid JSON")))
	}

	response, err := s.engine.Receive(ctx, request)
	if err != nil {
		return mustMarshal(query.ErrorEnvelope(err))
	}
	return mustMarshal(response)
}

func mustMarshal(envelope map[string]any) []byte {
	data, err := json.Marshal(envelope)
	if err != nil {
		// Envelopes are built from wire-safe values; this is unreachable
		// short of a programming error.
		return []byte(`{"error":{"code":"INTERNAL","message":"response encoding failed"}}`)
	}
	return data
}

// Stop drains the subscription and closes the connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.logger.Warn("drain failed", "error", err)
		}
		s.sub = nil
	}
	s.conn.Close()
	s.conn = nil
	return nil
}

// NewTransport returns a query.Transport that ships envelopes through an
// existing NATS connection using request/reply.
func NewTransport(conn *nats.Conn, config Config) query.Transport {
	_ = config.Validate()

	return func(ctx context.Context, request map[string]any) (map[string]any, error) {
		data, err := json.Marshal(request)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Transport", "Send", "request encoding")
		}

		ctx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
		defer cancel()

		msg, err := conn.RequestWithContext(ctx, config.Subject, data)
		if err != nil {
			return nil, errors.WrapRecoverable(err, "Transport", "Send",
				fmt.Sprintf("request on %s", config.Subject))
		}

		var response map[string]any
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			return nil, errors.WrapRecoverable(err, "Transport", "Send", "response decoding")
		}
		return response, nil
	}
}
