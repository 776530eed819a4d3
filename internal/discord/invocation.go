package discord

import (
	"github.com/bwmarrin/discordgo"
)

// Invocation is a slash command as seen by a handler: the command name, who
// ran it and where, and its options. It carries no reply capability; handlers
// return their reply text and the router delivers it.
type Invocation struct {
	Name      string
	GuildID   string
	ChannelID string

	// User is the invoking user. Never nil for invocations built by
	// [NewInvocation].
	User *discordgo.User

	// Roles are the invoking member's role ids. Empty outside guilds.
	Roles []string

	Options  []*discordgo.ApplicationCommandInteractionDataOption
	Resolved *discordgo.ApplicationCommandInteractionDataResolved
}

// NewInvocation extracts an Invocation from an application command
// interaction. Guild interactions carry the user on Member, DMs on User.
func NewInvocation(i *discordgo.InteractionCreate) *Invocation {
	data := i.ApplicationCommandData()
	inv := &Invocation{
		Name:      data.Name,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		User:      &discordgo.User{},
		Options:   data.Options,
		Resolved:  data.Resolved,
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		inv.User = i.Member.User
		inv.Roles = i.Member.Roles
	case i.User != nil:
		inv.User = i.User
	}
	return inv
}

// UserID returns the invoking user's id.
func (inv *Invocation) UserID() string {
	if inv.User == nil {
		return ""
	}
	return inv.User.ID
}

// Option returns the top-level option with the given name.
func (inv *Invocation) Option(name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range inv.Options {
		if opt != nil && opt.Name == name {
			return opt, true
		}
	}
	return nil, false
}

// UserOption returns the user passed in the named user-typed option. The
// option must exist and be of type user. The resolved user is preferred;
// when Discord sent no resolved data only the id is filled in.
func (inv *Invocation) UserOption(name string) (*discordgo.User, bool) {
	opt, ok := inv.Option(name)
	if !ok || opt.Type != discordgo.ApplicationCommandOptionUser {
		return nil, false
	}
	id, ok := opt.Value.(string)
	if !ok || id == "" {
		return nil, false
	}
	if inv.Resolved != nil {
		if u, ok := inv.Resolved.Users[id]; ok && u != nil {
			return u, true
		}
	}
	return &discordgo.User{ID: id}, true
}
