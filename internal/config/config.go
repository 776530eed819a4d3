// Package config provides the configuration schema and loader for tailbot.
//
// Values come from three layers, later ones winning: an optional YAML file,
// an optional .env file, and the process environment.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to the matching [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults applied to unset values.
const (
	DefaultPlaybackSource = "assets/stream.mp3"
	DefaultOpenTimeout    = 5 * time.Second
	DefaultJoinTimeout    = 10 * time.Second
	DefaultSilenceTimeout = 200 * time.Millisecond

	// MinSilenceTimeout is one Opus frame; anything shorter reports every
	// speaker as silent between packets.
	MinSilenceTimeout = 20 * time.Millisecond
)

// Config is the root configuration structure for tailbot.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Playback PlaybackConfig `yaml:"playback"`
	Voice    VoiceConfig    `yaml:"voice"`
	Server   ServerConfig   `yaml:"server"`
}

// DiscordConfig holds the bot credentials and the guild it serves.
type DiscordConfig struct {
	// Token is the bot token without the "Bot " prefix.
	Token string `yaml:"token" env:"DISCORD_TOKEN"`

	// GuildID is the guild whose commands are registered. Numeric snowflake.
	GuildID string `yaml:"guild_id" env:"GUILD_ID"`

	// ChannelID is the voice channel the start command joins. Numeric snowflake.
	ChannelID string `yaml:"channel_id" env:"CHANNEL_ID"`

	// OperatorRoleID restricts start, stop and set_target to members holding
	// this role. Empty allows everyone.
	OperatorRoleID string `yaml:"operator_role_id" env:"OPERATOR_ROLE_ID"`
}

// PlaybackConfig controls the stop command's audio source.
type PlaybackConfig struct {
	// Source is a file path or URL understood by ffmpeg.
	Source string `yaml:"source" env:"PLAYBACK_SOURCE"`

	// OpenTimeout bounds opening Source.
	OpenTimeout time.Duration `yaml:"open_timeout" env:"PLAYBACK_OPEN_TIMEOUT"`

	// FFmpegPath overrides the ffmpeg executable looked up in PATH.
	FFmpegPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
}

// VoiceConfig tunes voice connections.
type VoiceConfig struct {
	// JoinTimeout bounds the voice handshake.
	JoinTimeout time.Duration `yaml:"join_timeout" env:"VOICE_JOIN_TIMEOUT"`

	// SilenceTimeout is how long an SSRC may stay quiet before it is
	// reported as no longer speaking.
	SilenceTimeout time.Duration `yaml:"silence_timeout" env:"VOICE_SILENCE_TIMEOUT"`
}

// ServerConfig holds the health/metrics listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz and /metrics.
	// Empty disables the listener.
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`
}

// applyDefaults fills every unset optional value.
func (c *Config) applyDefaults() {
	if c.Playback.Source == "" {
		c.Playback.Source = DefaultPlaybackSource
	}
	if c.Playback.OpenTimeout == 0 {
		c.Playback.OpenTimeout = DefaultOpenTimeout
	}
	if c.Voice.JoinTimeout == 0 {
		c.Voice.JoinTimeout = DefaultJoinTimeout
	}
	if c.Voice.SilenceTimeout == 0 {
		c.Voice.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
}
