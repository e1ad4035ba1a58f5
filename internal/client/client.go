// Package client speaks the tag protocol from the tag side: one dial, one
// request frame, one response frame per call.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/danmuck/bedctl/internal/mailbox"
	"github.com/danmuck/bedctl/internal/protocol"
	"github.com/danmuck/bedctl/internal/protocol/frame"
)

var (
	ErrAddrRequired = errors.New("client: server addr required")
	ErrNoResponse   = errors.New("client: connection closed without response")
	ErrRejected     = errors.New("client: request rejected")
)

// RejectedError carries a 400 or 500 response.
type RejectedError struct {
	Status string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("client: status %s: %s", e.Status, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

type Client struct {
	addr    string
	timeout time.Duration
	limits  frame.Limits
	now     func() time.Time
}

func New(addr string) *Client {
	return &Client{
		addr:    strings.TrimSpace(addr),
		timeout: 5 * time.Second,
		limits:  frame.DefaultLimits(),
		now:     time.Now,
	}
}

// WithTimeout bounds dial, write and read for every call.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Do sends one request object and returns the decoded response.
func (c *Client) Do(ctx context.Context, req any) (protocol.Response, error) {
	if c.addr == "" {
		return protocol.Response{}, ErrAddrRequired
	}
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return protocol.Response{}, err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := frame.WriteFrame(conn, req); err != nil {
		return protocol.Response{}, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	obj, err := frame.NewReader(conn, c.limits).ReadFrame()
	if err != nil {
		if errors.Is(err, frame.ErrIncompleteFrame) {
			return protocol.Response{}, ErrNoResponse
		}
		return protocol.Response{}, err
	}
	return decodeResponse(obj), nil
}

// Join associates tag with room as of dataOn.
func (c *Client) Join(ctx context.Context, room, tag string, dataOn time.Time) error {
	resp, err := c.Do(ctx, map[string]string{
		protocol.FieldRoom:   room,
		protocol.FieldTag:    tag,
		protocol.FieldStatus: protocol.TokenGet,
		protocol.FieldDataOn: protocol.FormatTimestamp(dataOn),
	})
	if err != nil {
		return err
	}
	return check(resp)
}

func (c *Client) Leave(ctx context.Context, room, tag string) error {
	resp, err := c.Do(ctx, map[string]string{
		protocol.FieldRoom:   room,
		protocol.FieldTag:    tag,
		protocol.FieldStatus: protocol.TokenOut,
		protocol.FieldDataOn: protocol.FormatTimestamp(c.now()),
	})
	if err != nil {
		return err
	}
	return check(resp)
}

// Report sends a tag's own lifecycle state, relocating it to room.
func (c *Client) Report(ctx context.Context, tag, room, state string) (protocol.Response, error) {
	req := map[string]string{
		protocol.FieldTagAlt: tag,
		protocol.FieldState:  state,
	}
	if room != "" {
		req[protocol.FieldRoomAlt] = room
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return protocol.Response{}, err
	}
	return resp, check(resp)
}

// Poll fetches the pending command for tag. ok is false when none is waiting.
func (c *Client) Poll(ctx context.Context, tag string) (mailbox.Command, bool, error) {
	resp, err := c.Do(ctx, map[string]string{protocol.FieldTagAlt: tag})
	if err != nil {
		return mailbox.Command{}, false, err
	}
	if resp.Status == protocol.StatusNoContent {
		return mailbox.Command{}, false, nil
	}
	if err := check(resp); err != nil {
		return mailbox.Command{}, false, err
	}
	return mailbox.Command{Tag: resp.Bed, Action: resp.Action, DataOn: resp.DataOn}, true, nil
}

// Submit queues action for tag.
func (c *Client) Submit(ctx context.Context, tag, action string) (mailbox.Command, error) {
	resp, err := c.Do(ctx, map[string]string{
		protocol.FieldTagAlt: tag,
		protocol.FieldAction: action,
	})
	if err != nil {
		return mailbox.Command{}, err
	}
	if err := check(resp); err != nil {
		return mailbox.Command{}, err
	}
	return mailbox.Command{Tag: resp.Bed, Action: resp.Action, DataOn: resp.DataOn}, nil
}

// Telemetry records one RSSI reading. reset reports a pending reset instruction.
func (c *Client) Telemetry(ctx context.Context, room, tag string, rssi float64) (bool, error) {
	resp, err := c.Do(ctx, telemetryRequest{
		Room:   room,
		Tag:    tag,
		Status: protocol.TokenRSSI,
		RSSI:   rssi,
		DataOn: protocol.FormatTimestamp(c.now()),
	})
	if err != nil {
		return false, err
	}
	if resp.Status == protocol.StatusReset {
		return true, nil
	}
	return false, check(resp)
}

type telemetryRequest struct {
	Room   string  `json:"quarto"`
	Tag    string  `json:"ativo"`
	Status string  `json:"status"`
	RSSI   float64 `json:"rssi"`
	DataOn string  `json:"dataOn"`
}

func check(resp protocol.Response) error {
	if resp.Failed() {
		return &RejectedError{Status: resp.Status, Reason: resp.Erro}
	}
	return nil
}

func decodeResponse(obj frame.Object) protocol.Response {
	get := func(key string) string {
		v, _ := obj.String(key)
		return v
	}
	return protocol.Response{
		Room:   get(protocol.FieldRoomAlt),
		Bed:    get(protocol.FieldTagAlt),
		State:  get(protocol.FieldState),
		Action: get(protocol.FieldAction),
		DataOn: get(protocol.FieldDataOn),
		Status: get(protocol.FieldStatus),
		Erro:   get(protocol.FieldError),
	}
}
