package mailbox

import (
	"sync"
	"testing"

	"github.com/danmuck/bedctl/internal/testutil/testlog"
)

func TestEnqueueOverwritesUndeliveredCommand(t *testing.T) {
	testlog.Start(t)

	mb := New()
	mb.Enqueue("HRP004201693", "turnon", "2025-06-01T00:00:00.000Z")
	mb.Enqueue("HRP004201693", "turnoff", "2025-06-01T00:00:01.000Z")

	cmd, ok := mb.Poll("HRP004201693")
	if !ok {
		t.Fatalf("expected pending command")
	}
	if cmd.Action != "turnoff" || cmd.DataOn != "2025-06-01T00:00:01.000Z" {
		t.Fatalf("expected latest command, got %+v", cmd)
	}
	if _, ok := mb.Poll("HRP004201693"); ok {
		t.Fatalf("command delivered twice")
	}
}

func TestPollUnknownTag(t *testing.T) {
	testlog.Start(t)

	mb := New()
	if _, ok := mb.Poll("nobody"); ok {
		t.Fatalf("expected no command")
	}
}

func TestPollIsolatedPerTag(t *testing.T) {
	testlog.Start(t)

	mb := New()
	mb.Enqueue("B1", "turnon", "t1")
	mb.Enqueue("B2", "turnoff", "t2")

	if cmd, ok := mb.Poll("B2"); !ok || cmd.Action != "turnoff" {
		t.Fatalf("unexpected B2 poll: %+v %v", cmd, ok)
	}
	pending := mb.Pending()
	if len(pending) != 1 || pending[0].Tag != "B1" {
		t.Fatalf("unexpected pending: %+v", pending)
	}
}

func TestConcurrentEnqueueAndPollNeverDropsCommands(t *testing.T) {
	testlog.Start(t)

	mb := New()
	const rounds = 500
	var (
		wg        sync.WaitGroup
		delivered int
	)
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			mb.Enqueue("B1", "turnon", "t")
		}
		close(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if _, ok := mb.Poll("B1"); ok {
				delivered++
			}
			select {
			case <-done:
				if _, ok := mb.Poll("B1"); ok {
					delivered++
				}
				return
			default:
			}
		}
	}()
	wg.Wait()

	if delivered == 0 {
		t.Fatalf("expected at least one delivery")
	}
	if delivered > rounds {
		t.Fatalf("delivered more commands than enqueued: %d", delivered)
	}
	if mb.Len() != 0 {
		t.Fatalf("command left behind after final poll")
	}
}

func TestResetFlagsTakeOnce(t *testing.T) {
	testlog.Start(t)

	flags := NewResetFlags()
	if flags.Take("402", "TAG1") {
		t.Fatalf("unexpected pending reset")
	}
	flags.Request("", "TAG1")
	flags.Request(" ", "TAG1")
	if got := flags.Pending(); len(got) != 1 || got[0] != (ResetRequest{Tag: "TAG1"}) {
		t.Fatalf("unexpected pending resets: %v", got)
	}
	if !flags.Take("402", "TAG1") {
		t.Fatalf("expected pending reset")
	}
	if flags.Take("402", "TAG1") {
		t.Fatalf("reset delivered twice")
	}
	if flags.Request("402", " ") {
		t.Fatalf("blank tag must be rejected")
	}
}

func TestResetFlagsScopedToRoom(t *testing.T) {
	testlog.Start(t)

	flags := NewResetFlags()
	flags.Request("402", "TAG1")
	if flags.Take("999", "TAG1") {
		t.Fatalf("reset fired for a reading from another room")
	}
	if !flags.PendingFor("TAG1") {
		t.Fatalf("expected reset still pending")
	}
	if !flags.Take("402", "TAG1") {
		t.Fatalf("expected reset for the requested room")
	}
	if flags.PendingFor("TAG1") {
		t.Fatalf("reset left behind after delivery")
	}

	flags.Request("402", "TAG1")
	flags.Request("", "TAG1")
	if !flags.Take("402", "TAG1") || !flags.Take("402", "TAG1") {
		t.Fatalf("expected scoped and room-less resets to both deliver")
	}
	if flags.Take("402", "TAG1") {
		t.Fatalf("unexpected third reset")
	}
}
