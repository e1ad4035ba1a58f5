package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/danmuck/bedctl/internal/mailbox"
	"github.com/danmuck/bedctl/internal/observability"
	"github.com/danmuck/bedctl/internal/protocol"
	"github.com/danmuck/bedctl/internal/protocol/frame"
	"github.com/danmuck/bedctl/internal/registry"
	"github.com/danmuck/bedctl/internal/sink"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Phase is the connection state machine position.
type Phase string

const (
	PhaseAwaitFrame Phase = "await_frame"
	PhaseDispatch   Phase = "dispatch"
	PhaseRespond    Phase = "respond"
	PhaseClosed     Phase = "closed"
)

// Config bounds per-connection work.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SinkTimeout  time.Duration
	Limits       frame.Limits
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SinkTimeout:  5 * time.Second,
		Limits:       frame.DefaultLimits(),
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = def.SinkTimeout
	}
	if c.Limits.MaxFrameBytes <= 0 {
		c.Limits = def.Limits
	}
	return c
}

// Deps are the shared structures a Handler dispatches into.
type Deps struct {
	Registry *registry.Registry
	Mailbox  *mailbox.Mailbox
	Resets   *mailbox.ResetFlags
	Sink     sink.Sink
	Clock    clockwork.Clock
}

// Handler answers one tag request per connection.
type Handler struct {
	registry *registry.Registry
	mailbox  *mailbox.Mailbox
	resets   *mailbox.ResetFlags
	sink     sink.Sink
	clock    clockwork.Clock
	cfg      Config
	logger   zerolog.Logger
}

func NewHandler(deps Deps, cfg Config) *Handler {
	if deps.Registry == nil {
		deps.Registry = registry.New(registry.Config{})
	}
	if deps.Mailbox == nil {
		deps.Mailbox = mailbox.New()
	}
	if deps.Resets == nil {
		deps.Resets = mailbox.NewResetFlags()
	}
	if deps.Sink == nil {
		deps.Sink = sink.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Handler{
		registry: deps.Registry,
		mailbox:  deps.Mailbox,
		resets:   deps.Resets,
		sink:     deps.Sink,
		clock:    deps.Clock,
		cfg:      cfg.WithDefaults(),
		logger:   observability.Component("bedctl.server"),
	}
}

// ServeConn runs the connection state machine to completion and closes conn.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) {
	release := observability.TrackTagConnection()
	defer release()
	defer conn.Close()

	logger := h.logger.With().
		Str("conn_id", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	phase := PhaseAwaitFrame

	defer func() {
		if rec := recover(); rec != nil {
			observability.RecordTagDrop("panic")
			logger.Error().
				Str("phase", string(phase)).
				Interface("panic", rec).
				Msg("bedctl.server handler panic")
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	obj, err := frame.NewReader(conn, h.cfg.Limits).ReadFrame()
	if err != nil {
		reason := dropReason(err)
		observability.RecordTagDrop(reason)
		event := logger.Warn()
		if reason == "empty" {
			event = logger.Debug()
		}
		event.Str("phase", string(phase)).Str("reason", reason).Err(err).Msg("bedctl.server closing without response")
		return
	}

	phase = PhaseDispatch
	msg := protocol.Classify(obj)
	resp := h.Dispatch(ctx, msg)

	phase = PhaseRespond
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	if err := frame.WriteFrame(conn, resp); err != nil {
		observability.RecordTagDrop("write")
		logger.Warn().Str("phase", string(phase)).Err(err).Msg("bedctl.server write failed")
		return
	}
	observability.RecordTagMessage(string(msg.Kind()), statusLabel(resp))

	phase = PhaseClosed
	logger.Debug().
		Str("kind", string(msg.Kind())).
		Str("status", resp.Status).
		Str("phase", string(phase)).
		Msg("bedctl.server answered")
}

// Dispatch applies one classified message and returns its response.
func (h *Handler) Dispatch(ctx context.Context, msg protocol.Message) protocol.Response {
	switch m := msg.(type) {
	case protocol.Telemetry:
		return h.handleTelemetry(ctx, m)
	case protocol.StateReport:
		return h.handleStateReport(ctx, m)
	case protocol.CommandPoll:
		return h.handlePoll(m)
	case protocol.CommandSubmit:
		return h.handleCommand(m)
	case protocol.Join:
		return h.handleJoin(ctx, m)
	case protocol.Leave:
		return h.handleLeave(ctx, m)
	case protocol.Invalid:
		h.logger.Info().Str("reason", m.Reason).Msg("bedctl.server rejected payload")
		return protocol.Rejected(m.Reason)
	default:
		h.logger.Error().Err(fmt.Errorf("%w: %T", protocol.ErrUnknownMessage, msg)).Msg("bedctl.server dispatch")
		return protocol.Rejected(protocol.ReasonInvalidPayload)
	}
}

func (h *Handler) handleTelemetry(ctx context.Context, m protocol.Telemetry) protocol.Response {
	rssi := m.RSSI
	err := h.submit(ctx, sink.Document{
		Type:     sink.TypeRSSI,
		ServerTS: h.now(),
		Room:     m.Room,
		Tag:      m.Tag,
		RSSI:     &rssi,
		DataOn:   m.DataOn,
	})
	if h.resets.Take(m.Room, m.Tag) {
		h.logger.Info().Str("room", m.Room).Str("tag", m.Tag).Msg("bedctl.server sending reset")
		return protocol.ResetInstruction()
	}
	if err != nil {
		return protocol.UpstreamFailure(protocol.ReasonRecordFailed)
	}
	return protocol.OK()
}

func (h *Handler) handleStateReport(ctx context.Context, m protocol.StateReport) protocol.Response {
	if m.DataOn == "" {
		m.DataOn = h.now()
	}
	info, err := h.registry.Report(m.Tag, m.Room, m.State, m.DataOn)
	_ = h.submit(ctx, sink.Document{
		Type:     sink.TypeConn,
		ServerTS: h.now(),
		Room:     m.Room,
		Tag:      m.Tag,
		Status:   m.State,
		DataOn:   m.DataOn,
	})
	if err != nil {
		h.logger.Info().Str("tag", m.Tag).Str("room", m.Room).Err(err).Msg("bedctl.server state report rejected")
		return protocol.Rejected(rejectionReason(err))
	}
	h.logger.Info().
		Str("tag", m.Tag).
		Str("state", m.State).
		Str("room", info.Room).
		Msg("bedctl.server state report applied")
	return protocol.StateAccepted(m)
}

func (h *Handler) handlePoll(m protocol.CommandPoll) protocol.Response {
	cmd, ok := h.mailbox.Poll(m.Tag)
	if !ok {
		return protocol.NoContent()
	}
	h.logger.Info().Str("tag", cmd.Tag).Str("action", cmd.Action).Msg("bedctl.server command delivered")
	return protocol.CommandDelivery(cmd.Tag, cmd.Action, cmd.DataOn)
}

func (h *Handler) handleCommand(m protocol.CommandSubmit) protocol.Response {
	if m.DataOn == "" {
		m.DataOn = h.now()
	}
	cmd := h.mailbox.Enqueue(m.Tag, m.Action, m.DataOn)
	h.logger.Info().Str("tag", cmd.Tag).Str("action", cmd.Action).Msg("bedctl.server command queued")
	return protocol.CommandQueued(cmd.Tag, cmd.Action, cmd.DataOn)
}

func (h *Handler) handleJoin(ctx context.Context, m protocol.Join) protocol.Response {
	_, err := h.registry.Join(m.Tag, m.Room, m.DataOn)
	_ = h.submit(ctx, sink.Document{
		Type:     sink.TypeConn,
		ServerTS: h.now(),
		Room:     m.Room,
		Tag:      m.Tag,
		Status:   protocol.TokenGet,
		DataOn:   m.DataOn,
	})
	if err != nil {
		h.logger.Info().Str("tag", m.Tag).Str("room", m.Room).Err(err).Msg("bedctl.server join rejected")
		return protocol.Rejected(rejectionReason(err))
	}
	h.logger.Info().Str("tag", m.Tag).Str("room", m.Room).Str("dataOn", m.DataOn).Msg("bedctl.server tag joined")
	return protocol.OK()
}

func (h *Handler) handleLeave(ctx context.Context, m protocol.Leave) protocol.Response {
	res, err := h.registry.Leave(m.Tag)
	_ = h.submit(ctx, sink.Document{
		Type:     sink.TypeConn,
		ServerTS: h.now(),
		Room:     m.Room,
		Tag:      m.Tag,
		Status:   protocol.TokenOut,
		DataOn:   m.DataOn,
	})
	if err != nil {
		h.logger.Info().Str("tag", m.Tag).Err(err).Msg("bedctl.server leave rejected")
		return protocol.Rejected(rejectionReason(err))
	}
	h.logger.Info().Str("tag", m.Tag).Str("room", res.Room).Msg("bedctl.server tag left")
	return protocol.OK()
}

// submit never rolls back registry changes; callers decide whether a failure
// reaches the tag.
func (h *Handler) submit(ctx context.Context, doc sink.Document) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.SinkTimeout)
	defer cancel()
	if err := h.sink.Submit(ctx, doc); err != nil {
		h.logger.Warn().
			Str("tipo", doc.Type).
			Str("tag", doc.Tag).
			Err(err).
			Msg("bedctl.server log sink submit failed")
		return err
	}
	return nil
}

func (h *Handler) now() string {
	return protocol.FormatTimestamp(h.clock.Now())
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, registry.ErrConflict):
		return protocol.ReasonAlreadyAssociated
	case errors.Is(err, registry.ErrNotFound):
		return protocol.ReasonTagNotFound
	case errors.Is(err, registry.ErrRoomFull):
		return protocol.ReasonRoomFull
	case errors.Is(err, registry.ErrUnknownRoom):
		return protocol.ReasonUnknownRoom
	case errors.Is(err, registry.ErrInvalidInput):
		return protocol.ReasonIncompletePayload
	default:
		return protocol.ReasonInvalidPayload
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, frame.ErrIncompleteFrame):
		return "empty"
	case errors.Is(err, frame.ErrTruncatedFrame):
		return "truncated"
	case errors.Is(err, frame.ErrFrameTooLarge):
		return "too_large"
	case errors.Is(err, frame.ErrDecode):
		return "decode"
	case errors.Is(err, os.ErrDeadlineExceeded):
		return "timeout"
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return "closed"
	default:
		return "read"
	}
}

func statusLabel(resp protocol.Response) string {
	if resp.Status == "" {
		return "delivered"
	}
	return resp.Status
}
