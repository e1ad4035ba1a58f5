package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/bedctl/internal/observability"
	"github.com/rs/zerolog"
)

// Listener accepts tag connections and hands each to its own goroutine.
type Listener struct {
	ln      net.Listener
	handler *Handler
	logger  zerolog.Logger

	wg     sync.WaitGroup
	active atomic.Int64
	closed atomic.Bool
}

// Listen binds addr. A bind failure is returned to the caller and is fatal
// for the service.
func Listen(addr string, h *Handler) (*Listener, error) {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return nil, err
	}
	return NewListener(ln, h), nil
}

// NewListener wraps an already bound listener.
func NewListener(ln net.Listener, h *Handler) *Listener {
	return &Listener{
		ln:      ln,
		handler: h,
		logger:  h.logger,
	}
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Active reports connections currently being served.
func (l *Listener) Active() int64 {
	return l.active.Load()
}

// Serve runs the accept loop until ctx is done or the listener closes. Accept
// errors other than closure back off and retry. It returns nil on orderly
// shutdown; use Shutdown to wait for in-flight connections.
func (l *Listener) Serve(ctx context.Context) error {
	l.logger.Info().Str("addr", l.ln.Addr().String()).Msg("bedctl.server listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-stop:
		}
	}()

	var tempDelay time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || l.closed.Load() || errors.Is(err, net.ErrClosed) {
				l.logger.Info().Msg("bedctl.server listener stopped")
				return nil
			}
			tempDelay = nextDelay(tempDelay)
			observability.RecordTagDrop("accept")
			l.logger.Warn().Err(err).Dur("retry_in", tempDelay).Msg("bedctl.server accept error")
			select {
			case <-time.After(tempDelay):
			case <-ctx.Done():
			}
			continue
		}
		tempDelay = 0

		l.wg.Add(1)
		l.active.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.active.Add(-1)
			l.handler.ServeConn(ctx, conn)
		}()
	}
}

// Close stops accepting. In-flight connections finish on their own deadlines.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.ln.Close()
}

// Shutdown closes the listener and waits for in-flight connections or ctx.
func (l *Listener) Shutdown(ctx context.Context) error {
	err := l.Close()
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		return time.Second
	}
	return d
}
