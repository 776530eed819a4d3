// Package commands implements Discord slash command handlers for tailbot.
//
// Every handler returns its reply text; the router in the parent package
// delivers it. Long-running handlers are registered as deferred.
package commands

import (
	"errors"

	"github.com/MrWong99/tailbot/internal/discord"
)

// ErrMalformedInput is returned when a required option is missing or has
// the wrong type. It reaches the user through a [discord.PublicError].
var ErrMalformedInput = errors.New("commands: malformed input")

// malformed wraps ErrMalformedInput in a user-facing error.
func malformed(msg string) error {
	return &discord.PublicError{Msg: msg, Err: ErrMalformedInput}
}

// Registrar is implemented by every command group.
type Registrar interface {
	Register(router *discord.CommandRouter)
}

// RegisterAll registers every group with router.
func RegisterAll(router *discord.CommandRouter, groups ...Registrar) {
	for _, g := range groups {
		g.Register(router)
	}
}
