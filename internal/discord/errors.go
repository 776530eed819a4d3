package discord

import (
	"context"
	"errors"

	"github.com/MrWong99/tailbot/internal/playback"
	"github.com/MrWong99/tailbot/internal/resilience"
	"github.com/MrWong99/tailbot/internal/session"
)

// Fixed reply texts.
const (
	NotImplementedReply = "not implemented :("
	InternalErrorReply  = "Something went wrong while running that command."
	RateLimitedReply    = "You're sending commands too quickly. Try again in a moment."
	ForbiddenReply      = "You are not allowed to use this command."
)

// errHandlerPanic marks a recovered handler panic.
var errHandlerPanic = errors.New("discord: handler panicked")

// PublicError is a handler error whose Msg is safe to show to the user as
// is. Err is the cause and stays in the logs.
type PublicError struct {
	Msg string
	Err error
}

func (e *PublicError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *PublicError) Unwrap() error { return e.Err }

// ReplyText converts a handler error into the text sent back to the user.
// Known failures get a fixed message; anything else is shown as
// "Error: <msg>".
func ReplyText(err error) string {
	var (
		pub     *PublicError
		joinErr *session.JoinError
		playErr *playback.Error
	)
	switch {
	case errors.As(err, &pub):
		return pub.Msg
	case errors.Is(err, errHandlerPanic):
		return InternalErrorReply
	case errors.As(err, &joinErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return "Timed out joining the voice channel."
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "Joining keeps failing, so I'm pausing for a bit. Try again later."
		}
		return "Could not join the voice channel."
	case errors.As(err, &playErr):
		if errors.Is(playErr.Reason, playback.ErrNotConnected) {
			return "I'm not in a voice channel. Use /start first."
		}
		return "Could not open the audio source."
	default:
		return "Error: " + err.Error()
	}
}
