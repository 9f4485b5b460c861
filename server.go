package mogimail

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mogimail/mogimail/utils"
)

// defaultMaxMessageSize is the default cap on total DATA-phase bytes per
// transaction (SPEC_FULL.md §9(a)): generous enough not to bother a normal
// test fixture, finite enough that a runaway client can't exhaust memory.
const defaultMaxMessageSize = 25 * 1024 * 1024

// ServerConfig holds the tunables a Server is constructed with, mirroring
// the teacher's DefaultServerConfig/NewServer defaulting pattern, reduced
// to the fields this profile's non-goals leave meaningful: no TLS config,
// no auth mechanisms, no extension toggles.
type ServerConfig struct {
	Logger         *slog.Logger
	MaxRecipients  int
	MaxMessageSize int
	// ReadTimeout bounds how long the engine waits for the next command or
	// DATA line before dropping the connection. Zero means no deadline is
	// set, matching spec.md §5: "Cancellation and timeouts: None provided
	// by the engine itself." An embedder that wants the teacher's
	// fail-fast-on-a-hung-socket behavior opts in with WithReadTimeout.
	ReadTimeout time.Duration
}

// DefaultServerConfig returns the configuration a Server uses when no
// Option overrides it.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Logger:         slog.New(slog.NewTextHandler(os.Stderr, nil)),
		MaxRecipients:  maxRecipients,
		MaxMessageSize: defaultMaxMessageSize,
	}
}

// Option configures a Server at construction time.
type Option func(*ServerConfig)

// WithLogger overrides the server's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) { c.Logger = logger }
}

// WithMaxRecipients overrides the forward-path list cap.
func WithMaxRecipients(n int) Option {
	return func(c *ServerConfig) { c.MaxRecipients = n }
}

// WithMaxMessageSize overrides the DATA-phase byte cap. A value of 0 means
// unlimited, matching spec.md's "no fixed cap" default.
func WithMaxMessageSize(n int) Option {
	return func(c *ServerConfig) { c.MaxMessageSize = n }
}

// WithReadTimeout opts a Server into per-read socket deadlines, the
// teacher's default but not this profile's (spec.md §5). Zero (the
// default) disables deadlines entirely.
func WithReadTimeout(d time.Duration) Option {
	return func(c *ServerConfig) { c.ReadTimeout = d }
}

// Server accepts SMTP connections and drives one engine per connection
// (spec.md §4.6). Construct with NewServer, then call Start.
type Server struct {
	hostname string
	config   ServerConfig

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

// NewServer constructs a Server that will advertise hostname in its
// greeting and replies (spec.md §6 "Library surface").
func NewServer(hostname string, opts ...Option) *Server {
	cfg := DefaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{hostname: hostname, config: cfg}
}

// Start binds addr and accepts connections until Shutdown is called or
// Accept fails, spawning one engine per connection (spec.md §4.6).
// Each delivered Message is pushed to sink.
func (s *Server) Start(addr string, sink chan<- Message) error {
	if s.hostname == "" {
		return ErrHostnameRequired
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	limits := DefaultLimits()
	limits.MaxRecipients = s.config.MaxRecipients
	limits.MaxDataSize = s.config.MaxMessageSize

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			return err
		}

		id := utils.GenerateID()
		connLog := s.config.Logger.With("conn", id, "remote", conn.RemoteAddr().String())
		connLog.Info("connection accepted")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			e := newEngine(conn, s.hostname, sink, limits, connLog, id)
			e.readTimeout = s.config.ReadTimeout
			e.run()
			connLog.Info("connection closed")
		}()
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to finish, or for ctx to be done. This is an ambient
// addition beyond the wire protocol spec.md describes: a library embedded
// in a test binary needs a way to stop listening between test cases
// without killing the process (SPEC_FULL.md §6).
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
