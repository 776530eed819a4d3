// Package session manages the bot's voice sessions: joining a guild's voice
// channel, wiring the five voice event subscriptions to a [Multiplexer], and
// tearing everything down on leave or remote disconnect.
//
// A [Manager] owns every [Session] it creates and is the only code that
// changes a session's [State]. At most one non-terminal session exists per
// guild.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/MrWong99/tailbot/pkg/voice"
)

// State is the lifecycle state of a [Session].
type State int

const (
	// Connecting means the voice handshake is in progress.
	Connecting State = iota

	// Connected means the link is up and events are flowing.
	Connected

	// Failed means the join did not complete. Terminal.
	Failed

	// Disconnected means the session was left or dropped remotely. Terminal.
	Disconnected
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotConnected is returned by [Session.Play] when the session is not in
// the [Connected] state.
var ErrNotConnected = errors.New("session: not connected")

// ErrNoSession is returned by [Manager.Leave] when the guild has no session.
var ErrNoSession = errors.New("session: no active session")

// JoinError reports a failed attempt to join a voice channel. No session is
// left behind when it is returned.
type JoinError struct {
	GuildID   string
	ChannelID string
	Err       error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("session: join guild %s channel %s: %v", e.GuildID, e.ChannelID, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }

// Session is a handle to one voice connection in one guild. Callers may read
// it and play audio into it; only the [Manager] mutates it.
type Session struct {
	GuildID   string
	ChannelID string

	mu       sync.Mutex
	state    State
	link     voice.Link
	unsubs   map[voice.EventKind]func()
	joinedAt time.Time
}

func newSession(guildID, channelID string) *Session {
	return &Session{
		GuildID:   guildID,
		ChannelID: channelID,
		state:     Connecting,
		unsubs:    make(map[voice.EventKind]func(), len(voice.Kinds)),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// JoinedAt returns when the session became connected, or the zero time.
func (s *Session) JoinedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinedAt
}

// Subscriptions returns the number of live event subscriptions.
func (s *Session) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unsubs)
}

// Play hands a 48 kHz stereo s16le PCM stream to the voice link, replacing
// whatever is currently playing. src is owned by the session afterwards and
// is closed even when Play fails.
func (s *Session) Play(src io.ReadCloser) error {
	s.mu.Lock()
	link, state := s.link, s.state
	s.mu.Unlock()

	if state != Connected || link == nil {
		_ = src.Close()
		return ErrNotConnected
	}
	return link.Play(src)
}

// subscribe records the cancel func of the subscription for kind. Each kind
// may be subscribed exactly once per session. A subscription arriving after
// the session terminated is cancelled immediately.
func (s *Session) subscribe(kind voice.EventKind, unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.unsubs[kind]; dup {
		panic(fmt.Sprintf("session: duplicate %s subscription for guild %s", kind, s.GuildID))
	}
	if s.state != Connected {
		unsubscribe()
		return
	}
	s.unsubs[kind] = unsubscribe
}

// connected reports whether events should still be delivered.
func (s *Session) connected() bool {
	return s.State() == Connected
}

// attach stores link and marks the session connected. It fails when the
// session was left while the handshake was still in flight.
func (s *Session) attach(link voice.Link, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connecting {
		return false
	}
	s.link = link
	s.state = Connected
	s.joinedAt = now
	return true
}

// fail marks a session whose join did not complete.
func (s *Session) fail() {
	s.mu.Lock()
	if s.state == Connecting {
		s.state = Failed
	}
	s.mu.Unlock()
}

// release moves the session to Disconnected and cancels every subscription.
// It returns the link and whether the session was connected before, or a
// nil link and false when the session had already terminated.
func (s *Session) release() (voice.Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Failed || s.state == Disconnected {
		return nil, false
	}
	wasConnected := s.state == Connected
	s.state = Disconnected
	for kind, unsubscribe := range s.unsubs {
		unsubscribe()
		delete(s.unsubs, kind)
	}
	return s.link, wasConnected
}
