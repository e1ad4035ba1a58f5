// Package service wires the tag listener, the operator API and the log sink
// into one process lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/bedctl/internal/api"
	"github.com/danmuck/bedctl/internal/config"
	"github.com/danmuck/bedctl/internal/mailbox"
	"github.com/danmuck/bedctl/internal/observability"
	"github.com/danmuck/bedctl/internal/registry"
	"github.com/danmuck/bedctl/internal/server"
	"github.com/danmuck/bedctl/internal/sink"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	heartbeatInterval = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var ErrNotStarted = errors.New("service: not started")

// Service owns the shared registry, mailbox and reset flags for one process.
type Service struct {
	cfg    config.Config
	clock  clockwork.Clock
	logger zerolog.Logger

	Registry *registry.Registry
	Mailbox  *mailbox.Mailbox
	Resets   *mailbox.ResetFlags

	mu        sync.Mutex
	started   bool
	listener  *server.Listener
	httpLn    net.Listener
	httpSrv   *http.Server
	closeSink func() error
}

func New(cfg config.Config) *Service {
	return NewWithClock(cfg, clockwork.NewRealClock())
}

func NewWithClock(cfg config.Config, clock clockwork.Clock) *Service {
	return &Service{
		cfg:      cfg,
		clock:    clock,
		logger:   observability.Component("bedctl.service"),
		Registry: registry.New(cfg.Registry),
		Mailbox:  mailbox.New(),
		Resets:   mailbox.NewResetFlags(),
	}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext binds every endpoint and serves until ctx is done. A bind
// failure is returned before anything is served.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.serve(ctx)
}

// Start opens the sink and binds the tag and HTTP listeners.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := config.Validate(s.cfg); err != nil {
		return err
	}

	out, closeSink, err := sink.Open(s.cfg.Sink)
	if err != nil {
		return fmt.Errorf("open log sink: %w", err)
	}

	serverCfg := s.cfg.Server
	serverCfg.SinkTimeout = s.cfg.Sink.Timeout
	handler := server.NewHandler(server.Deps{
		Registry: s.Registry,
		Mailbox:  s.Mailbox,
		Resets:   s.Resets,
		Sink:     out,
		Clock:    s.clock,
	}, serverCfg)

	ln, err := server.Listen(s.cfg.ListenAddr, handler)
	if err != nil {
		_ = closeSink()
		return fmt.Errorf("bind tag listener %q: %w", s.cfg.ListenAddr, err)
	}

	if addr := strings.TrimSpace(s.cfg.HTTPAddr); addr != "" {
		httpLn, err := net.Listen("tcp", addr)
		if err != nil {
			_ = ln.Close()
			_ = closeSink()
			return fmt.Errorf("bind http listener %q: %w", addr, err)
		}
		routes := api.New(s.cfg.ID, api.Deps{
			Registry: s.Registry,
			Mailbox:  s.Mailbox,
			Resets:   s.Resets,
			Clock:    s.clock,
		}, s.cfg.CorsOrigins)
		s.httpLn = httpLn
		s.httpSrv = &http.Server{
			Handler:           routes.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	s.listener = ln
	s.closeSink = closeSink
	s.started = true
	s.logger.Info().
		Str("id", s.cfg.ID).
		Str("tag_addr", ln.Addr().String()).
		Str("http_addr", s.httpAddrLocked()).
		Str("sink", s.cfg.Sink.Kind).
		Msg("bedctl.service started")
	return nil
}

// TagAddr is the bound tag listener address.
func (s *Service) TagAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr is the bound API address, empty when the API is disabled.
func (s *Service) HTTPAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddrLocked()
}

func (s *Service) httpAddrLocked() string {
	if s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

func (s *Service) serve(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	listener, httpSrv, httpLn, closeSink := s.listener, s.httpSrv, s.httpLn, s.closeSink
	s.mu.Unlock()
	defer func() {
		if err := closeSink(); err != nil {
			s.logger.Warn().Err(err).Msg("bedctl.service sink close failed")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tagErr := make(chan error, 1)
	go func() { tagErr <- listener.Serve(ctx) }()

	httpErr := make(chan error, 1)
	if httpSrv != nil {
		go func() {
			err := httpSrv.Serve(httpLn)
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			httpErr <- err
		}()
	}

	ticker := s.clock.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-tagErr:
			runErr = err
			tagErr = nil
			break loop
		case err := <-httpErr:
			runErr = err
			break loop
		case <-ticker.Chan():
			snap := s.Registry.Snapshot()
			s.logger.Info().
				Int("rooms", len(snap.Rooms)).
				Int("tags", len(snap.Tags)).
				Int("pending_commands", s.Mailbox.Len()).
				Int("pending_resets", len(s.Resets.Pending())).
				Int64("active_conns", listener.Active()).
				Msg("bedctl.service heartbeat")
		}
	}

	cancel()
	if httpSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("bedctl.service http shutdown")
		}
		done()
	}
	if tagErr != nil {
		if err := <-tagErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	drainCtx, drained := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := listener.Shutdown(drainCtx); err != nil {
		s.logger.Warn().Err(err).Int64("active_conns", listener.Active()).Msg("bedctl.service tag listener drain")
	}
	drained()
	s.logger.Info().Msg("bedctl.service shutdown")
	return runErr
}
