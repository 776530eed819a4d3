// Package discord provides a [voice.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library.
//
// The platform requires an active *discordgo.Session (owned by the bot layer).
// Each call to [Platform.Join] joins the given voice channel and returns a
// [Link] that turns Discord's voice traffic into [voice.Event] values and
// encodes PCM playback to Opus.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/tailbot/pkg/voice"
)

// Compile-time interface assertion.
var _ voice.Platform = (*Platform)(nil)

// DefaultSilenceTimeout is how long an SSRC may go without packets before a
// speaking-stopped update is emitted.
const DefaultSilenceTimeout = 200 * time.Millisecond

// Platform implements [voice.Platform] using discordgo voice connections.
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
	silence time.Duration
}

// Option configures a [Platform].
type Option func(*Platform)

// WithSilenceTimeout overrides [DefaultSilenceTimeout].
func WithSilenceTimeout(d time.Duration) Option {
	return func(p *Platform) {
		if d > 0 {
			p.silence = d
		}
	}
}

// New creates a Discord Platform for the given session.
func New(session *discordgo.Session, opts ...Option) *Platform {
	p := &Platform{
		session: session,
		silence: DefaultSilenceTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Join joins channelID in guildID and returns an active [voice.Link].
//
// discordgo's join blocks without a context, so it runs on its own goroutine.
// If ctx ends first, Join returns ctx's error and the late connection, if one
// is ever made, is torn down in the background.
func (p *Platform) Join(ctx context.Context, guildID, channelID string) (voice.Link, error) {
	res := make(chan joinResult, 1)
	go func() {
		// mute=false (we send audio), deaf=false (we receive audio).
		vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, false)
		res <- joinResult{vc: vc, err: err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, r.err)
		}
		return newLink(r.vc, p.session, guildID, channelID, p.silence), nil

	case <-ctx.Done():
		go func() {
			if r := <-res; r.err == nil && r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, ctx.Err())
	}
}
