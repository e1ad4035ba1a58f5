package mailbox

import (
	"sort"
	"strings"
	"sync"
)

// Command is one pending actuation instruction for a tag.
type Command struct {
	Tag    string `json:"bed"`
	Action string `json:"action"`
	DataOn string `json:"dataOn"`
}

// Mailbox holds at most one undelivered command per tag. Enqueue and Poll
// share one lock, so a poll either sees a concurrent enqueue or leaves it in
// place for the next poll.
type Mailbox struct {
	mu    sync.Mutex
	items map[string]Command
}

func New() *Mailbox {
	return &Mailbox{
		items: make(map[string]Command),
	}
}

// Enqueue overwrites any undelivered command for tag.
func (m *Mailbox) Enqueue(tag, action, dataOn string) Command {
	cmd := Command{Tag: strings.TrimSpace(tag), Action: action, DataOn: dataOn}
	if cmd.Tag == "" {
		return cmd
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[cmd.Tag] = cmd
	return cmd
}

// Poll pops the pending command for tag.
func (m *Mailbox) Poll(tag string) (Command, bool) {
	key := strings.TrimSpace(tag)
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd, ok := m.items[key]
	if ok {
		delete(m.items, key)
	}
	return cmd, ok
}

// Pending lists undelivered commands ordered by tag.
func (m *Mailbox) Pending() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, 0, len(m.items))
	for _, cmd := range m.items {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Tag < out[j].Tag
	})
	return out
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
