// Package discord provides the Discord bot layer for tailbot. It owns the
// discordgo.Session lifecycle, routes slash command interactions to
// registered handlers, and checks operator role permissions.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/tailbot/pkg/voice"
	discordvoice "github.com/MrWong99/tailbot/pkg/voice/discord"
)

// Intents requested on the gateway. Message content is privileged and not
// needed for slash commands.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string

	// GuildID is the guild commands are registered in.
	GuildID string

	// OperatorRoleID gates restricted commands. Empty allows everyone.
	OperatorRoleID string

	// SilenceTimeout is passed to the voice platform.
	SilenceTimeout time.Duration
}

// Bot owns the Discord gateway connection and routes interactions
// to registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platform  *discordvoice.Platform
	router    *CommandRouter
	guildID   string
	commands  []*discordgo.ApplicationCommand
	ready     atomic.Bool
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction
// handler. routerOpts configure the bot's [CommandRouter]; the operator role
// from cfg is applied first.
func New(_ context.Context, cfg Config, routerOpts ...RouterOption) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = Intents

	opts := append([]RouterOption{WithPermissions(NewPermissionChecker(cfg.OperatorRoleID))}, routerOpts...)
	b := &Bot{
		session: session,
		router:  NewCommandRouter(opts...),
		guildID: cfg.GuildID,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(b.onReady)
	session.AddHandler(b.onResumed)
	session.AddHandler(b.onDisconnect)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b.platform = discordvoice.New(session, discordvoice.WithSilenceTimeout(cfg.SilenceTimeout))
	return b, nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	name := ""
	if r.User != nil {
		name = r.User.String()
	}
	slog.Info("discord gateway ready", "user", name, "guilds", len(r.Guilds))
}

func (b *Bot) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	b.ready.Store(true)
	slog.Info("discord gateway resumed")
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.ready.Store(false)
	slog.Warn("discord gateway disconnected")
}

// Ready reports whether the gateway connection is currently up.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

// Platform returns the voice platform backed by this bot's session.
func (b *Bot) Platform() voice.Platform {
	return b.platform
}

// GuildID returns the target guild ID.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered), "guild_id", b.guildID)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close waits for in-flight deferred commands, unregisters commands and
// disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.router.Wait()

		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		b.ready.Store(false)

		slog.Info("discord bot closed")
	})
	return closeErr
}
