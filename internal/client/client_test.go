package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/bedctl/internal/mailbox"
	"github.com/danmuck/bedctl/internal/protocol"
	"github.com/danmuck/bedctl/internal/registry"
	"github.com/danmuck/bedctl/internal/server"
	"github.com/danmuck/bedctl/internal/testutil/testlog"
)

type harness struct {
	client   *Client
	registry *registry.Registry
	resets   *mailbox.ResetFlags
}

func startHarness(t *testing.T) *harness {
	t.Helper()
	reg := registry.New(registry.Config{})
	resets := mailbox.NewResetFlags()
	h := server.NewHandler(server.Deps{Registry: reg, Resets: resets}, server.Config{})
	ln, err := server.Listen("127.0.0.1:0", h)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ln.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{
		client:   New(ln.Addr().String()).WithTimeout(2 * time.Second),
		registry: reg,
		resets:   resets,
	}
}

func TestJoinConflictLeaveRejoin(t *testing.T) {
	testlog.Start(t)
	h := startHarness(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := h.client.Join(ctx, "402", "X", at); err != nil {
		t.Fatalf("join 402: %v", err)
	}
	err := h.client.Join(ctx, "403", "X", at)
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rejected.Status != protocol.StatusBadRequest || rejected.Reason != protocol.ReasonAlreadyAssociated {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
	if err := h.client.Leave(ctx, "402", "X"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := h.client.Join(ctx, "403", "X", at); err != nil {
		t.Fatalf("rejoin 403: %v", err)
	}
	if info, _ := h.registry.Locate("X"); info.Room != "403" {
		t.Fatalf("expected X in 403, got %+v", info)
	}
}

func TestPollAndSubmit(t *testing.T) {
	testlog.Start(t)
	h := startHarness(t)
	ctx := context.Background()

	if _, ok, err := h.client.Poll(ctx, "X"); err != nil || ok {
		t.Fatalf("expected empty mailbox, ok=%v err=%v", ok, err)
	}
	queued, err := h.client.Submit(ctx, "X", "ON")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if queued.DataOn == "" {
		t.Fatalf("expected server-stamped dataOn")
	}
	cmd, ok, err := h.client.Poll(ctx, "X")
	if err != nil || !ok {
		t.Fatalf("poll: ok=%v err=%v", ok, err)
	}
	if cmd.Action != "ON" || cmd.Tag != "X" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestReportAndTelemetryReset(t *testing.T) {
	testlog.Start(t)
	h := startHarness(t)
	ctx := context.Background()

	resp, err := h.client.Report(ctx, "X", "402", "IN")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if resp.Room != "402" || resp.State != "IN" {
		t.Fatalf("unexpected report echo: %+v", resp)
	}

	reset, err := h.client.Telemetry(ctx, "402", "X", -70)
	if err != nil || reset {
		t.Fatalf("expected plain ack, reset=%v err=%v", reset, err)
	}
	h.resets.Request("", "X")
	reset, err = h.client.Telemetry(ctx, "402", "X", -70)
	if err != nil || !reset {
		t.Fatalf("expected reset, reset=%v err=%v", reset, err)
	}
}

func TestDoReportsSilentClose(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	_, err = New(ln.Addr().String()).WithTimeout(time.Second).Do(context.Background(), map[string]string{"bed": "X"})
	if err == nil {
		t.Fatalf("expected error on silent close")
	}
}

func TestDoRequiresAddr(t *testing.T) {
	testlog.Start(t)
	if _, err := New(" ").Do(context.Background(), nil); !errors.Is(err, ErrAddrRequired) {
		t.Fatalf("expected ErrAddrRequired, got %v", err)
	}
}
