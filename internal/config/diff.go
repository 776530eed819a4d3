package config

// ConfigDiff describes what changed between two configs. Log level and
// playback source apply live; every other change needs a restart and is
// listed in RestartRequired by its YAML key.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SourceChanged bool
	NewSource     string

	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SourceChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Playback.Source != new.Playback.Source {
		d.SourceChanged = true
		d.NewSource = new.Playback.Source
	}

	restart := func(key string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart("discord.token", old.Discord.Token != new.Discord.Token)
	restart("discord.guild_id", old.Discord.GuildID != new.Discord.GuildID)
	restart("discord.channel_id", old.Discord.ChannelID != new.Discord.ChannelID)
	restart("discord.operator_role_id", old.Discord.OperatorRoleID != new.Discord.OperatorRoleID)
	restart("playback.open_timeout", old.Playback.OpenTimeout != new.Playback.OpenTimeout)
	restart("playback.ffmpeg_path", old.Playback.FFmpegPath != new.Playback.FFmpegPath)
	restart("voice.join_timeout", old.Voice.JoinTimeout != new.Voice.JoinTimeout)
	restart("voice.silence_timeout", old.Voice.SilenceTimeout != new.Voice.SilenceTimeout)
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)

	return d
}
