// Command tailbot is the entry point for the tailbot Discord voice bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MrWong99/tailbot/internal/config"
	discordbot "github.com/MrWong99/tailbot/internal/discord"
	"github.com/MrWong99/tailbot/internal/discord/commands"
	"github.com/MrWong99/tailbot/internal/observe"
	"github.com/MrWong99/tailbot/internal/playback"
	"github.com/MrWong99/tailbot/internal/resilience"
	"github.com/MrWong99/tailbot/internal/session"
	"github.com/MrWong99/tailbot/internal/target"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "optional path to a YAML configuration file")
	watch := flag.Bool("watch", false, "reload log level and playback source when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tailbot: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "tailbot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(newLogger(&level))

	slog.Info("tailbot starting",
		"version", version,
		"config", *configPath,
		"guild_id", cfg.Discord.GuildID,
		"channel_id", cfg.Discord.ChannelID,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "tailbot",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:          cfg.Discord.Token,
		GuildID:        cfg.Discord.GuildID,
		OperatorRoleID: cfg.Discord.OperatorRoleID,
		SilenceTimeout: cfg.Voice.SilenceTimeout,
	}, discordbot.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	// ── Voice, playback and commands ──────────────────────────────────────────
	platform := resilience.NewPlatform(bot.Platform(), resilience.CircuitBreakerConfig{Name: "voice.join"})
	manager := session.NewManager(platform, session.NewMultiplexer(metrics),
		session.WithJoinTimeout(cfg.Voice.JoinTimeout),
		session.WithMetrics(metrics),
	)
	player := playback.New(&playback.FFmpeg{Binary: cfg.Playback.FFmpegPath},
		playback.WithOpenTimeout(cfg.Playback.OpenTimeout),
		playback.WithMetrics(metrics),
	)

	var source atomic.Pointer[string]
	source.Store(&cfg.Playback.Source)

	commands.RegisterAll(bot.Router(),
		commands.IDCommand{},
		commands.NewTargetCommands(&target.State{}, metrics),
		commands.NewVoiceCommands(manager, player, cfg.Discord.GuildID, cfg.Discord.ChannelID, func() string {
			return *source.Load()
		}),
	)

	// ── Config watcher (optional) ─────────────────────────────────────────────
	if *watch && *configPath != "" {
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			applyReload(config.Diff(old, new), &level, &source)
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		go func() { _ = w.Run(ctx) }()
	}

	// ── Health and metrics ────────────────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		probes := opsProbes(bot.Ready, func() error { return platform.Check(cfg.Discord.GuildID) })
		srv = newHTTPServer(cfg.Server.ListenAddr, probes, metrics)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
		slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
	}

	slog.Info("bot ready, press Ctrl+C to shut down")

	runErr := bot.Run(ctx)
	exitCode := exitStatus(runErr)
	if exitCode != 0 {
		slog.Error("discord bot error", "err", runErr)
		stop()
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	// Deferred commands finish first so none races the voice teardown.
	bot.Router().Wait()
	manager.Close()

	if err := bot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}

	slog.Info("goodbye", "exit_code", exitCode)
	return exitCode
}

// exitStatus maps the bot's Run result to the process exit code. A normal
// shutdown ends Run with context.Canceled.
func exitStatus(runErr error) int {
	if runErr == nil || errors.Is(runErr, context.Canceled) {
		return 0
	}
	return 1
}

// applyReload applies the live-reloadable parts of a config change.
func applyReload(d config.ConfigDiff, level *slog.LevelVar, source *atomic.Pointer[string]) {
	if d.LogLevelChanged {
		level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SourceChanged {
		s := d.NewSource
		source.Store(&s)
		slog.Info("playback source changed", "source", s)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart", "keys", d.RestartRequired)
	}
}

// newLogger creates a text logger on stderr whose level follows level.
func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
