// Package voice defines the contract between tailbot and a real-time voice
// transport.
//
// The two primary abstractions are:
//
//   - [Platform]: joins a voice channel and returns a [Link].
//   - [Link]: an established voice connection. Callers subscribe to the five
//     low-level [Event] kinds, hand it PCM audio for playback, and watch
//     [Link.Done] for remote-side disconnects.
//
// Implementations live in adapter packages (e.g. voice/discord). Keeping the
// contract here lets the session manager and its tests stay free of any
// transport SDK.
package voice

import (
	"context"
	"io"
)

// Handler receives voice events. Handlers are invoked synchronously on the
// transport's receive goroutine and must return quickly.
type Handler func(Event)

// Link represents an established connection to a voice channel.
//
// Implementations must be safe for concurrent use.
type Link interface {
	// Subscribe registers h for events of the given kind and returns a
	// function that removes the registration. Calling the returned function
	// more than once is a no-op.
	Subscribe(kind EventKind, h Handler) (unsubscribe func())

	// Play starts streaming src into the channel, replacing any track that is
	// currently playing. src must yield interleaved little-endian int16 PCM at
	// 48 kHz stereo. Play returns once the stream is attached; src is closed
	// by the Link when playback ends or is replaced.
	Play(src io.ReadCloser) error

	// Done is closed when the link terminates, either through Disconnect or
	// because the remote side dropped the connection.
	Done() <-chan struct{}

	// Disconnect tears the link down. It is safe to call more than once;
	// subsequent calls return nil.
	Disconnect() error
}

// Platform is the entry point for a voice transport.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Join connects to channelID inside guildID. ctx bounds the connection
	// attempt only; a returned Link lives until it is disconnected.
	Join(ctx context.Context, guildID, channelID string) (Link, error)
}
