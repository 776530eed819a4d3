package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/tailbot/internal/observe"
	"github.com/MrWong99/tailbot/pkg/voice"
)

// DefaultJoinTimeout bounds a voice handshake when no timeout is configured.
const DefaultJoinTimeout = 10 * time.Second

// errJoinAborted is wrapped into a [JoinError] when the session was left
// while its handshake was still running.
var errJoinAborted = errors.New("left while connecting")

// errChannelContention is wrapped into a [JoinError] when concurrent joins
// for different channels of one guild keep replacing each other.
var errChannelContention = errors.New("concurrent join to another channel")

// EventHandler receives every voice event of a connected session.
// [Multiplexer] is the production implementation.
type EventHandler interface {
	OnEvent(voice.Event)
}

// Manager creates, tracks and tears down voice sessions, one per guild.
// All exported methods are safe for concurrent use.
type Manager struct {
	platform    voice.Platform
	events      EventHandler
	joinTimeout time.Duration
	metrics     *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*Session // guild ID → live or connecting session

	joins singleflight.Group
}

// Option configures a [Manager].
type Option func(*Manager)

// WithJoinTimeout overrides [DefaultJoinTimeout]. Non-positive values are
// ignored.
func WithJoinTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.joinTimeout = d
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) {
		m.metrics = met
	}
}

// NewManager returns a Manager that connects through platform and routes
// every event of every session to events.
func NewManager(platform voice.Platform, events EventHandler, opts ...Option) *Manager {
	m := &Manager{
		platform:    platform,
		events:      events,
		joinTimeout: DefaultJoinTimeout,
		sessions:    make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Join connects the bot to channelID in guildID and returns the session.
//
// Join is idempotent: when the guild already has a connected session on the
// same channel it is returned unchanged. A connected session on another
// channel is left first. Concurrent calls for one guild share a single
// handshake.
//
// On failure the returned error is a [*JoinError] and no session remains.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) (*Session, error) {
	for range 2 {
		v, err, _ := m.joins.Do(guildID, func() (any, error) {
			return m.join(ctx, guildID, channelID)
		})
		if err != nil {
			return nil, err
		}
		// A shared handshake may have targeted another channel; try once
		// more on our own.
		if sess := v.(*Session); sess.ChannelID == channelID {
			return sess, nil
		}
	}
	return nil, &JoinError{GuildID: guildID, ChannelID: channelID, Err: errChannelContention}
}

func (m *Manager) join(ctx context.Context, guildID, channelID string) (*Session, error) {
	if cur := m.lookup(guildID); cur != nil {
		if cur.ChannelID == channelID && cur.State() == Connected {
			slog.Debug("session: reusing voice session", "guild_id", guildID, "channel_id", channelID)
			return cur, nil
		}
		slog.Info("session: superseding voice session",
			"guild_id", guildID, "old_channel_id", cur.ChannelID, "channel_id", channelID)
		m.teardown(cur, true)
	}

	ctx, span := observe.StartSpan(ctx, "voice.join")
	defer span.End()
	span.SetAttributes(
		attribute.String("guild_id", guildID),
		attribute.String("channel_id", channelID),
	)

	sess := newSession(guildID, channelID)
	m.mu.Lock()
	m.sessions[guildID] = sess
	m.mu.Unlock()

	start := time.Now()
	jctx, cancel := context.WithTimeout(ctx, m.joinTimeout)
	defer cancel()

	link, err := m.platform.Join(jctx, guildID, channelID)
	if err == nil && !sess.attach(link, time.Now()) {
		_ = link.Disconnect()
		err = errJoinAborted
	}
	if err != nil {
		sess.fail()
		m.forget(sess)
		m.metrics.RecordJoin(ctx, "error", time.Since(start))
		observe.SpanError(span, err)
		observe.Logger(ctx).Warn("session: voice join failed",
			"guild_id", guildID, "channel_id", channelID, "err", err)
		return nil, &JoinError{GuildID: guildID, ChannelID: channelID, Err: err}
	}

	guarded := func(ev voice.Event) {
		if sess.connected() {
			m.events.OnEvent(ev)
		}
	}
	for _, kind := range voice.Kinds {
		sess.subscribe(kind, link.Subscribe(kind, guarded))
	}

	m.metrics.RecordJoin(ctx, "ok", time.Since(start))
	m.metrics.ActiveSessions.Add(ctx, 1)
	observe.Logger(ctx).Info("session: joined voice channel",
		"guild_id", guildID, "channel_id", channelID, "duration", time.Since(start))

	go m.watch(sess, link)
	return sess, nil
}

// watch tears the session down once the link terminates on its own.
func (m *Manager) watch(sess *Session, link voice.Link) {
	<-link.Done()
	if m.teardown(sess, false) {
		slog.Info("session: voice link closed remotely",
			"guild_id", sess.GuildID, "channel_id", sess.ChannelID)
	}
}

// Session returns the guild's connected session, if any.
func (m *Manager) Session(guildID string) (*Session, bool) {
	sess := m.lookup(guildID)
	if sess == nil || sess.State() != Connected {
		return nil, false
	}
	return sess, true
}

// Active returns the number of connected sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.State() == Connected {
			n++
		}
	}
	return n
}

// Leave disconnects the guild's session and releases its subscriptions.
// It returns [ErrNoSession] when the guild has none.
func (m *Manager) Leave(guildID string) error {
	sess := m.lookup(guildID)
	if sess == nil {
		return ErrNoSession
	}
	m.teardown(sess, true)
	slog.Info("session: left voice channel", "guild_id", guildID, "channel_id", sess.ChannelID)
	return nil
}

// Close leaves every session. Used on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.teardown(s, true)
	}
}

// teardown moves sess to Disconnected, unsubscribes and forgets it. When
// disconnect is set the link is closed as well. It reports whether this call
// performed the transition.
func (m *Manager) teardown(sess *Session, disconnect bool) bool {
	link, wasConnected := sess.release()
	m.forget(sess)
	if !wasConnected {
		return link != nil
	}
	m.metrics.ActiveSessions.Add(context.Background(), -1)
	if disconnect && link != nil {
		if err := link.Disconnect(); err != nil {
			slog.Warn("session: voice disconnect error", "guild_id", sess.GuildID, "err", err)
		}
	}
	return true
}

func (m *Manager) lookup(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID]
}

// forget removes sess from the registry unless it was already replaced.
func (m *Manager) forget(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[sess.GuildID] == sess {
		delete(m.sessions, sess.GuildID)
	}
}
