package commands

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/tailbot/internal/discord"
	"github.com/MrWong99/tailbot/internal/session"
)

// Replies sent by /start and /stop on success.
const (
	joinedReply  = "Joined the voice channel."
	playingReply = "Playing."
)

// Sessions is the part of [session.Manager] the voice commands need.
type Sessions interface {
	Join(ctx context.Context, guildID, channelID string) (*session.Session, error)
	Session(guildID string) (*session.Session, bool)
}

// Player starts playback of a locator into a session.
type Player interface {
	Play(ctx context.Context, locator string, sess *session.Session) error
}

// VoiceCommands holds the dependencies for /start and /stop.
type VoiceCommands struct {
	sessions  Sessions
	player    Player
	guildID   string
	channelID string

	// source is read on every /stop so config reloads apply.
	source func() string
}

// NewVoiceCommands creates a VoiceCommands for the configured guild and
// voice channel. source returns the locator /stop plays.
func NewVoiceCommands(sessions Sessions, player Player, guildID, channelID string, source func() string) *VoiceCommands {
	return &VoiceCommands{
		sessions:  sessions,
		player:    player,
		guildID:   guildID,
		channelID: channelID,
		source:    source,
	}
}

// Register registers /start and /stop with the router. Both wait on the
// network and are deferred.
func (vc *VoiceCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand(vc.StartDefinition(), vc.handleStart, discord.Deferred(), discord.Restricted())
	router.RegisterCommand(vc.StopDefinition(), vc.handleStop, discord.Deferred(), discord.Restricted())
}

// StartDefinition returns the ApplicationCommand definition for /start.
func (vc *VoiceCommands) StartDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "start",
		Description: "Join the configured voice channel",
	}
}

// StopDefinition returns the ApplicationCommand definition for /stop.
func (vc *VoiceCommands) StopDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "stop",
		Description: "Play the configured audio in the voice channel",
	}
}

func (vc *VoiceCommands) handleStart(ctx context.Context, inv *discord.Invocation) (string, error) {
	sess, err := vc.sessions.Join(ctx, vc.guildID, vc.channelID)
	if err != nil {
		return "", err
	}
	slog.Info("voice channel joined",
		"guild_id", sess.GuildID,
		"channel_id", sess.ChannelID,
		"by", inv.UserID(),
	)
	return joinedReply, nil
}

func (vc *VoiceCommands) handleStop(ctx context.Context, inv *discord.Invocation) (string, error) {
	// A missing session is passed on as nil; the player reports it.
	sess, _ := vc.sessions.Session(vc.guildID)
	locator := vc.source()
	if err := vc.player.Play(ctx, locator, sess); err != nil {
		return "", err
	}
	slog.Info("playback started", "guild_id", vc.guildID, "source", locator, "by", inv.UserID())
	return playingReply, nil
}
