package playback

import (
	"errors"
	"fmt"
)

// Reasons carried by [Error].
var (
	// ErrNotConnected means there is no connected voice session to play into.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrSourceUnavailable means the audio source could not be opened.
	ErrSourceUnavailable = errors.New("audio source unavailable")
)

// Error reports a playback request that could not be started. Reason is one
// of [ErrNotConnected] or [ErrSourceUnavailable]; Err is the underlying
// cause, if any.
type Error struct {
	Reason  error
	Locator string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("playback: %s: %v", e.Locator, e.Reason)
	}
	return fmt.Sprintf("playback: %s: %v: %v", e.Locator, e.Reason, e.Err)
}

// Unwrap exposes both the reason and the cause to [errors.Is].
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}
