// Package mock provides in-memory mock implementations of the [voice.Platform]
// and [voice.Link] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	link := mock.NewLink()
//	platform := &mock.Platform{JoinResult: link}
//	got, err := platform.Join(ctx, "guild-1", "channel-42")
//	link.Emit(voice.SpeakingUpdate{SSRC: 7, Speaking: true})
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/tailbot/pkg/voice"
)

// ─── Link ─────────────────────────────────────────────────────────────────────

// Link is a mock implementation of [voice.Link]. Create it with [NewLink].
type Link struct {
	mu sync.Mutex

	subs   map[voice.EventKind]map[int]voice.Handler
	nextID int

	done      chan struct{}
	closeOnce sync.Once

	// PlayError is returned by [Link.Play].
	PlayError error

	// DisconnectError is returned by the first [Link.Disconnect] call.
	DisconnectError error

	// Played records every source handed to Play, in order.
	Played []io.ReadCloser

	// CallCountSubscribe records how many times Subscribe was called.
	CallCountSubscribe int

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int
}

// NewLink returns a ready-to-use Link.
func NewLink() *Link {
	return &Link{
		subs: make(map[voice.EventKind]map[int]voice.Handler),
		done: make(chan struct{}),
	}
}

// Subscribe implements [voice.Link].
func (l *Link) Subscribe(kind voice.EventKind, h voice.Handler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.CallCountSubscribe++
	id := l.nextID
	l.nextID++
	if l.subs[kind] == nil {
		l.subs[kind] = make(map[int]voice.Handler)
	}
	l.subs[kind][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs[kind], id)
		})
	}
}

// Play implements [voice.Link]. Records src and returns PlayError.
func (l *Link) Play(src io.ReadCloser) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.PlayError != nil {
		return l.PlayError
	}
	l.Played = append(l.Played, src)
	return nil
}

// Done implements [voice.Link].
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Disconnect implements [voice.Link]. Closes Done on the first call.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	l.CallCountDisconnect++
	l.mu.Unlock()

	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.DisconnectError
	})
	return err
}

// DropRemote simulates the remote side closing the connection: Done is
// closed without Disconnect being called.
func (l *Link) DropRemote() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Subscriptions returns the number of live subscriptions across all kinds.
func (l *Link) Subscriptions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, hs := range l.subs {
		n += len(hs)
	}
	return n
}

// SubscriptionsFor returns the number of live subscriptions for kind.
func (l *Link) SubscriptionsFor(kind voice.EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[kind])
}

// Emit delivers ev synchronously to every handler subscribed to its kind.
func (l *Link) Emit(ev voice.Event) {
	l.mu.Lock()
	hs := make([]voice.Handler, 0, len(l.subs[ev.Kind()]))
	for _, h := range l.subs[ev.Kind()] {
		hs = append(hs, h)
	}
	l.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// JoinCall records the arguments of a single [Platform.Join] invocation.
type JoinCall struct {
	GuildID   string
	ChannelID string
}

// Platform is a mock implementation of [voice.Platform].
type Platform struct {
	mu sync.Mutex

	// JoinResult is the [voice.Link] returned by Join. When nil and JoinError
	// is nil, a fresh [Link] is created for every call.
	JoinResult voice.Link

	// JoinError is the error returned by Join.
	JoinError error

	// JoinHook, when set, runs before Join returns. Tests use it to block or
	// observe the connection attempt.
	JoinHook func(ctx context.Context) error

	// JoinCalls records all Join invocations.
	JoinCalls []JoinCall

	// Links records every Link handed out by Join.
	Links []voice.Link
}

// Join implements [voice.Platform].
func (p *Platform) Join(ctx context.Context, guildID, channelID string) (voice.Link, error) {
	p.mu.Lock()
	p.JoinCalls = append(p.JoinCalls, JoinCall{GuildID: guildID, ChannelID: channelID})
	hook := p.JoinHook
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.JoinError != nil {
		return nil, p.JoinError
	}
	link := p.JoinResult
	if link == nil {
		link = NewLink()
	}
	p.Links = append(p.Links, link)
	return link, nil
}

// CallCountJoin returns the number of Join invocations so far.
func (p *Platform) CallCountJoin() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.JoinCalls)
}
