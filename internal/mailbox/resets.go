package mailbox

import (
	"sort"
	"strings"
	"sync"
)

// ResetRequest names a tag owed a RESET. An empty Room matches readings from
// any room.
type ResetRequest struct {
	Room string `json:"quarto,omitempty"`
	Tag  string `json:"ativo"`
}

// ResetFlags tracks tags owed a RESET instruction on their next RSSI report.
// It is independent of Mailbox: commands are pulled by polls, resets ride on
// telemetry acknowledgments.
type ResetFlags struct {
	mu      sync.Mutex
	pending map[ResetRequest]struct{}
}

func NewResetFlags() *ResetFlags {
	return &ResetFlags{pending: make(map[ResetRequest]struct{})}
}

// Request marks tag for reset on its next reading from room, or from any room
// when room is empty. Repeated requests collapse into one.
func (f *ResetFlags) Request(room, tag string) bool {
	key := ResetRequest{Room: strings.TrimSpace(room), Tag: strings.TrimSpace(tag)}
	if key.Tag == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[key] = struct{}{}
	return true
}

// Take clears the flag matching a reading from room and reports whether one
// was set. A room-scoped request is consumed before a room-less one.
func (f *ResetFlags) Take(room, tag string) bool {
	tag = strings.TrimSpace(tag)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range []ResetRequest{
		{Room: strings.TrimSpace(room), Tag: tag},
		{Tag: tag},
	} {
		if _, ok := f.pending[key]; ok {
			delete(f.pending, key)
			return true
		}
	}
	return false
}

// PendingFor reports whether any reset is waiting for tag.
func (f *ResetFlags) PendingFor(tag string) bool {
	tag = strings.TrimSpace(tag)
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.pending {
		if key.Tag == tag {
			return true
		}
	}
	return false
}

func (f *ResetFlags) Pending() []ResetRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ResetRequest, 0, len(f.pending))
	for key := range f.pending {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		return out[i].Room < out[j].Room
	})
	return out
}
