package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrConflict     = errors.New("registry: tag already associated")
	ErrNotFound     = errors.New("registry: tag not associated")
	ErrRoomFull     = errors.New("registry: room at capacity")
	ErrUnknownRoom  = errors.New("registry: unknown room")
	ErrInvalidInput = errors.New("registry: tag and room are required")
)

// DefaultJoinStates are the state-report tokens that place a tag in a room.
var DefaultJoinStates = []string{"IN", "ON"}

// InitialState is the lifecycle state of pre-provisioned tags.
const InitialState = "OUT"

// ConflictError names the association that blocked a join.
type ConflictError struct {
	Tag  string
	Room string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("registry: tag %q already associated with room %q", e.Tag, e.Room)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Config selects the deployment's room policy.
type Config struct {
	// Rooms pre-provisions a fixed room set. Empty means rooms are created on first join.
	Rooms []string
	// Capacity caps tags per room. Zero means unlimited.
	Capacity int
	// JoinStates lists state-report tokens that associate the reporting tag.
	JoinStates []string
	// Tags pre-provisions known tags in InitialState.
	Tags []string
}

// TagInfo is the last known record for one tag. Room is empty when unassigned.
type TagInfo struct {
	Room   string `json:"quarto"`
	DataOn string `json:"dataOn"`
	State  string `json:"state,omitempty"`
}

// Snapshot is an independent copy of registry state.
type Snapshot struct {
	Rooms map[string]map[string]string `json:"rooms"`
	Tags  map[string]TagInfo           `json:"ativos"`
}

// JoinResult describes an accepted join.
type JoinResult struct {
	Tag    string
	Room   string
	DataOn string
}

// LeaveResult describes a removed association.
type LeaveResult struct {
	Tag  string
	Room string
}

// Registry stores room<->tag associations. One mutex guards every
// check-then-act sequence so a tag can never land in two rooms.
type Registry struct {
	mu sync.RWMutex

	fixed      bool
	capacity   int
	joinStates map[string]struct{}
	seedRooms  []string
	seedTags   []string

	rooms map[string]map[string]string
	tags  map[string]TagInfo
}

func New(cfg Config) *Registry {
	r := &Registry{
		fixed:      len(cfg.Rooms) > 0,
		capacity:   cfg.Capacity,
		joinStates: make(map[string]struct{}),
		seedRooms:  normalize(cfg.Rooms),
		seedTags:   normalize(cfg.Tags),
	}
	states := cfg.JoinStates
	if len(states) == 0 {
		states = DefaultJoinStates
	}
	for _, s := range states {
		if s = strings.TrimSpace(s); s != "" {
			r.joinStates[s] = struct{}{}
		}
	}
	r.provision()
	return r
}

// provision resets maps to the configured seed state. Callers hold mu or own r exclusively.
func (r *Registry) provision() {
	r.rooms = make(map[string]map[string]string, len(r.seedRooms))
	for _, room := range r.seedRooms {
		r.rooms[room] = make(map[string]string)
	}
	r.tags = make(map[string]TagInfo, len(r.seedTags))
	for _, tag := range r.seedTags {
		r.tags[tag] = TagInfo{State: InitialState}
	}
}

// Join associates tag with room. It fails without mutating anything when any
// room already holds tag or room cannot admit it.
func (r *Registry) Join(tag, room, dataOn string) (JoinResult, error) {
	tag = strings.TrimSpace(tag)
	room = strings.TrimSpace(room)
	if tag == "" || room == "" {
		return JoinResult{}, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.roomOfLocked(tag); ok {
		return JoinResult{}, &ConflictError{Tag: tag, Room: current}
	}
	if err := r.admitLocked(room); err != nil {
		return JoinResult{}, err
	}
	r.assignLocked(tag, room, dataOn)
	info := r.tags[tag]
	return JoinResult{Tag: tag, Room: room, DataOn: info.DataOn}, nil
}

// Leave removes tag from whichever room holds it. The tag record survives
// with its room cleared.
func (r *Registry) Leave(tag string) (LeaveResult, error) {
	tag = strings.TrimSpace(tag)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.roomOfLocked(tag)
	if !ok {
		return LeaveResult{}, ErrNotFound
	}
	r.unassignLocked(tag, room)
	return LeaveResult{Tag: tag, Room: room}, nil
}

// Report applies a tag's own state report as one atomic relocation: the tag
// leaves its current room, records state, and joins room when state is a
// join state. A fixed-mode room that does not exist leaves the tag
// unassigned. A full room rejects the whole report.
func (r *Registry) Report(tag, room, state, dataOn string) (TagInfo, error) {
	tag = strings.TrimSpace(tag)
	room = strings.TrimSpace(room)
	if tag == "" {
		return TagInfo{}, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, assigned := r.roomOfLocked(tag)
	_, joining := r.joinStates[state]
	joining = joining && room != ""
	if joining && room != current {
		err := r.admitLocked(room)
		switch {
		case errors.Is(err, ErrUnknownRoom):
			joining = false
		case err != nil:
			return TagInfo{}, err
		}
	}

	if assigned && (!joining || room != current) {
		r.unassignLocked(tag, current)
	}
	if joining {
		r.assignLocked(tag, room, dataOn)
	}
	info := r.tags[tag]
	info.State = state
	if dataOn != "" {
		info.DataOn = dataOn
	}
	r.tags[tag] = info
	return info, nil
}

// Locate returns the record for tag.
func (r *Registry) Locate(tag string) (TagInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tags[strings.TrimSpace(tag)]
	return info, ok
}

// Snapshot copies registry state out from under the lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Snapshot{
		Rooms: make(map[string]map[string]string, len(r.rooms)),
		Tags:  make(map[string]TagInfo, len(r.tags)),
	}
	for room, members := range r.rooms {
		copied := make(map[string]string, len(members))
		for tag, ts := range members {
			copied[tag] = ts
		}
		out.Rooms[room] = copied
	}
	for tag, info := range r.tags {
		out.Tags[tag] = info
	}
	return out
}

// Reset drops every association and returns to the provisioned state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provision()
}

func (r *Registry) roomOfLocked(tag string) (string, bool) {
	for room, members := range r.rooms {
		if _, ok := members[tag]; ok {
			return room, true
		}
	}
	return "", false
}

func (r *Registry) admitLocked(room string) error {
	members, ok := r.rooms[room]
	if !ok {
		if r.fixed {
			return fmt.Errorf("%w: %q", ErrUnknownRoom, room)
		}
		return nil
	}
	if r.capacity > 0 && len(members) >= r.capacity {
		return fmt.Errorf("%w: %q holds %d", ErrRoomFull, room, len(members))
	}
	return nil
}

func (r *Registry) assignLocked(tag, room, dataOn string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]string)
		r.rooms[room] = members
	}
	info := r.tags[tag]
	if dataOn != "" {
		info.DataOn = dataOn
	}
	info.Room = room
	members[tag] = info.DataOn
	r.tags[tag] = info
}

func (r *Registry) unassignLocked(tag, room string) {
	delete(r.rooms[room], tag)
	info := r.tags[tag]
	info.Room = ""
	r.tags[tag] = info
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
