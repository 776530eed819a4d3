package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Error lists every problem found while loading the configuration.
type Error struct {
	Problems []error
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "config: invalid configuration:\n  " + strings.Join(msgs, "\n  ")
}

func (e *Error) Unwrap() []error { return e.Problems }

// Loader reads configuration from its three sources. The zero value reads
// ".env" from the working directory and the process environment.
type Loader struct {
	// DotEnv is the .env file to read. Empty means ".env"; a missing file
	// is not an error.
	DotEnv string

	// Environ returns the process environment as KEY=value pairs.
	// Defaults to [os.Environ].
	Environ func() []string
}

// Load reads the YAML file at path (skipped when path is empty), overlays
// the environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	return Loader{}.Load(path)
}

// LoadFromReader decodes a YAML config from r, overlays env, applies
// defaults and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader, env map[string]string) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return build(data, env)
}

// Load is like the package-level [Load] but uses l's sources.
func (l Loader) Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
	}
	vars, err := l.environment()
	if err != nil {
		return nil, err
	}
	cfg, err := build(data, vars)
	if err != nil && path != "" {
		var ce *Error
		if !errors.As(err, &ce) {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	return cfg, err
}

// environment merges the .env file with the process environment. Process
// variables win.
func (l Loader) environment() (map[string]string, error) {
	dotenv := l.DotEnv
	if dotenv == "" {
		dotenv = ".env"
	}
	vars, err := godotenv.Read(dotenv)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %q: %w", dotenv, err)
		}
		vars = make(map[string]string)
	}

	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	for _, kv := range environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars, nil
}

// build layers YAML, environment and defaults, then validates.
func build(data []byte, vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, &Error{Problems: []error{err}}
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns an
// [*Error] listing all validation failures found, or nil.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token (DISCORD_TOKEN) is required"))
	}
	if err := snowflake(cfg.Discord.GuildID); err != nil {
		errs = append(errs, fmt.Errorf("discord.guild_id (GUILD_ID) %w", err))
	}
	if err := snowflake(cfg.Discord.ChannelID); err != nil {
		errs = append(errs, fmt.Errorf("discord.channel_id (CHANNEL_ID) %w", err))
	}
	if cfg.Discord.OperatorRoleID != "" {
		if err := snowflake(cfg.Discord.OperatorRoleID); err != nil {
			errs = append(errs, fmt.Errorf("discord.operator_role_id (OPERATOR_ROLE_ID) %w", err))
		}
	}

	if cfg.Playback.OpenTimeout < 0 {
		errs = append(errs, fmt.Errorf("playback.open_timeout %s must not be negative", cfg.Playback.OpenTimeout))
	}
	if cfg.Voice.JoinTimeout < 0 {
		errs = append(errs, fmt.Errorf("voice.join_timeout %s must not be negative", cfg.Voice.JoinTimeout))
	}
	if cfg.Voice.SilenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("voice.silence_timeout %s must not be negative", cfg.Voice.SilenceTimeout))
	} else if cfg.Voice.SilenceTimeout > 0 && cfg.Voice.SilenceTimeout < MinSilenceTimeout {
		errs = append(errs, fmt.Errorf("voice.silence_timeout %s is below the minimum of %s", cfg.Voice.SilenceTimeout, MinSilenceTimeout))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if len(errs) == 0 {
		return nil
	}
	return &Error{Problems: errs}
}

// snowflake checks that id is a non-empty Discord id.
func snowflake(id string) error {
	if id == "" {
		return errors.New("is required")
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return fmt.Errorf("%q is not a valid snowflake", id)
	}
	return nil
}
