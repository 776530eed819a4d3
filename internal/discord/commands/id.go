package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/tailbot/internal/discord"
)

// IDCommand replies with the caller's Discord user id.
type IDCommand struct{}

// Register registers /id with the router.
func (IDCommand) Register(router *discord.CommandRouter) {
	router.RegisterCommand(IDCommand{}.Definition(), IDCommand{}.Handle)
}

// Definition returns the ApplicationCommand definition for Discord.
func (IDCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "id",
		Description: "Show your Discord user id",
	}
}

// Handle implements [discord.HandlerFunc].
func (IDCommand) Handle(_ context.Context, inv *discord.Invocation) (string, error) {
	if inv.UserID() == "" {
		return "", malformed("Could not tell who you are.")
	}
	return inv.UserID(), nil
}
