package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/tailbot/internal/discord"
	"github.com/MrWong99/tailbot/internal/observe"
	"github.com/MrWong99/tailbot/internal/target"
)

// invalidUserReply is sent when set_target gets no usable user.
const invalidUserReply = "Please provide a valid user"

// TargetCommands holds the dependencies for /set_target.
type TargetCommands struct {
	state   *target.State
	metrics *observe.Metrics
}

// NewTargetCommands creates a TargetCommands writing into state. A nil
// metrics uses [observe.DefaultMetrics].
func NewTargetCommands(state *target.State, metrics *observe.Metrics) *TargetCommands {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &TargetCommands{state: state, metrics: metrics}
}

// Register registers /set_target with the router. It is restricted to
// operators.
func (tc *TargetCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand(tc.Definition(), tc.handleSetTarget, discord.Restricted())
}

// Definition returns the ApplicationCommand definition for Discord.
func (tc *TargetCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "set_target",
		Description: "Choose the user the bot follows",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "id",
				Description: "Who should the bot follow?",
				Required:    true,
			},
		},
	}
}

func (tc *TargetCommands) handleSetTarget(ctx context.Context, inv *discord.Invocation) (string, error) {
	user, ok := inv.UserOption("id")
	if !ok {
		return "", malformed(invalidUserReply)
	}
	id, err := strconv.ParseUint(user.ID, 10, 64)
	if err != nil || id == 0 {
		return "", malformed(invalidUserReply)
	}

	tc.state.Set(id)
	tc.metrics.TargetUpdates.Add(ctx, 1)
	slog.Info("target updated", "user_id", id, "by", inv.UserID())

	return fmt.Sprintf("Following %s", displayName(user)), nil
}

// displayName prefers the user's tag, then the global display name, then
// the mention syntax when only the id is known.
func displayName(u *discordgo.User) string {
	switch {
	case u.Username != "":
		return u.String()
	case u.GlobalName != "":
		return u.GlobalName
	default:
		return u.Mention()
	}
}
